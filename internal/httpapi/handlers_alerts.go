package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleAlerts(c *gin.Context) {
	alerts, err := s.svcs.Alerts.Alerts(c.Request.Context())
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(alerts), "alerts": alerts})
}

func (s *Server) handleAlertsSummary(c *gin.Context) {
	sum, err := s.svcs.Alerts.Summarize(c.Request.Context())
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/autodefi-ai/autodefi/internal/store"
)

func (s *Server) handleData(c *gin.Context) {
	fresh := c.Query("fresh") == "true"
	includeMeta := c.Query("include_metadata") == "true"

	var names []string
	if raw := c.Query("protocols"); raw != "" {
		for _, n := range strings.Split(raw, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}

	rows, source, err := s.svcs.Market.Protocols(c.Request.Context(), fresh, names)
	if err != nil {
		s.failErr(c, err)
		return
	}
	if !includeMeta {
		// the service may hand back its cached slice, so strip on a copy
		stripped := make([]store.ProtocolData, len(rows))
		copy(stripped, rows)
		for i := range stripped {
			stripped[i].Data = nil
		}
		rows = stripped
	}

	c.JSON(http.StatusOK, gin.H{
		"source":    source,
		"count":     len(rows),
		"protocols": rows,
	})
}

func (s *Server) handleDataMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.svcs.Market.Metrics())
}

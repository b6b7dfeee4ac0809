package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autodefi-ai/autodefi/internal/report"
)

func servePDF(c *gin.Context, filename string, pdf []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) handleReportPortfolio(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	analysis, err := s.svcs.Agent.Analyze(c.Request.Context(), wallet)
	if err != nil {
		s.failErr(c, err)
		return
	}
	pdf, err := report.Portfolio(analysis)
	if err != nil {
		s.failErr(c, err)
		return
	}
	servePDF(c, "portfolio-audit.pdf", pdf)
}

func (s *Server) handleReportVault(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	v, err := s.svcs.Vaults.Get(c.Request.Context(), id)
	if err != nil {
		s.failErr(c, err)
		return
	}
	logs, err := s.svcs.Vaults.Logs(c.Request.Context(), id, 10)
	if err != nil {
		s.failErr(c, err)
		return
	}
	pdf, err := report.Vault(v, logs)
	if err != nil {
		s.failErr(c, err)
		return
	}
	servePDF(c, fmt.Sprintf("vault-%d.pdf", id), pdf)
}

func (s *Server) handleReportTest(c *gin.Context) {
	pdf, err := report.Sample()
	if err != nil {
		s.failErr(c, err)
		return
	}
	servePDF(c, "report-test.pdf", pdf)
}

package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/autodefi-ai/autodefi/internal/store"
)

func (s *Server) routes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.GET("/test-cors", s.handleTestCORS)

		api.GET("/data", s.handleData)
		api.GET("/data/metrics", s.handleDataMetrics)

		pf := api.Group("/portfolio")
		{
			pf.GET("", s.handlePortfolioGet)
			pf.POST("/update", s.handlePortfolioUpdate)
			pf.POST("/refresh", s.handlePortfolioRefresh)
			pf.GET("/demo", s.handlePortfolioDemo)
			pf.GET("/analyze", s.handleAnalyze)
			pf.POST("/risk/:wallet", s.handleSetRisk)
			pf.GET("/onchain", s.handleOnchain)

			demo := pf.Group("/demo/holdings")
			{
				demo.POST("/add", s.handleDemoAdd)
				demo.POST("/update", s.handleDemoUpdate)
				demo.POST("/remove", s.handleDemoRemove)
			}
		}

		ai := api.Group("/ai")
		{
			ai.GET("/analyze", s.handleAnalyze)
			ai.GET("/simulate", s.handleSimulate)
			ai.POST("/execute", s.handleExecute)
		}

		vaults := api.Group("/vaults")
		{
			vaults.GET("", s.handleVaultList)
			vaults.GET("/:id", s.handleVaultGet)
			vaults.POST("/generate", s.handleVaultGenerate)
			vaults.POST("/simulate", s.handleVaultSimulate)
			vaults.POST("/:id/refresh", s.handleVaultRefresh)
			vaults.GET("/:id/logs", s.handleVaultLogs)
		}

		api.GET("/alerts", s.handleAlerts)
		api.GET("/alerts/summary", s.handleAlertsSummary)

		rp := api.Group("/report")
		{
			rp.GET("/generate", s.handleReportPortfolio)
			rp.GET("/vault/:id", s.handleReportVault)
			rp.GET("/test", s.handleReportTest)
		}
	}
}

// fail writes the standard error payload.
func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}

// failErr maps service errors onto HTTP statuses.
func (s *Server) failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, "not_found", "The requested resource does not exist.")
	default:
		s.log.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		fail(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "autodefi-api",
		"status":  "running",
		"docs":    "/health",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleTestCORS(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "CORS is configured correctly",
		"origin":  c.GetHeader("Origin"),
	})
}

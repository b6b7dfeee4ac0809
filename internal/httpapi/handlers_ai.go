package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autodefi-ai/autodefi/internal/agent"
)

func (s *Server) handleAnalyze(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	analysis, err := s.svcs.Agent.Analyze(c.Request.Context(), wallet)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) handleSimulate(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	res, err := s.svcs.Agent.Simulate(c.Request.Context(), wallet)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type executeRequest struct {
	WalletAddress string            `json:"wallet_address" binding:"required"`
	AmountUSD     float64           `json:"amount_usd"`
	Directions    []agent.Direction `json:"directions" binding:"required,min=1"`
}

// handleExecute records the intended moves without touching any chain;
// signing stays in the user's wallet.
func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.svcs.Agent.ExecuteStub(c.Request.Context(), req.WalletAddress, req.Directions, req.AmountUSD); err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status":  "simulated",
		"message": "Execution is simulated only. Sign transactions from your own wallet.",
		"moves":   len(req.Directions),
	})
}

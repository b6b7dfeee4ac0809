package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autodefi-ai/autodefi/internal/config"
	"github.com/autodefi-ai/autodefi/internal/eth"
)

// walletParam reads and validates the wallet from the query string.
func walletParam(c *gin.Context) (string, bool) {
	wallet := c.Query("wallet")
	if wallet == "" {
		fail(c, http.StatusBadRequest, "missing_wallet", "Provide a wallet query parameter.")
		return "", false
	}
	if !eth.ValidAddress(wallet) && wallet != config.DemoWallet {
		fail(c, http.StatusBadRequest, "invalid_wallet", "The wallet address is not a valid Ethereum address.")
		return "", false
	}
	return wallet, true
}

func (s *Server) handlePortfolioGet(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	if c.Query("fresh") == "true" {
		view, err := s.svcs.Portfolio.Refresh(c.Request.Context(), wallet)
		if err == nil {
			c.JSON(http.StatusOK, view)
			return
		}
		// fall through to the plain read; a first-time wallet has nothing
		// to refresh yet
	}
	view, err := s.svcs.Portfolio.Get(c.Request.Context(), wallet)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type updateHoldingRequest struct {
	WalletAddress string  `json:"wallet_address" binding:"required"`
	ProtocolName  string  `json:"protocol_name" binding:"required"`
	TokenSymbol   string  `json:"token_symbol" binding:"required"`
	Amount        float64 `json:"amount"`
}

func (s *Server) handlePortfolioUpdate(c *gin.Context) {
	var req updateHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	view, err := s.svcs.Portfolio.UpdateHolding(c.Request.Context(), req.WalletAddress, req.ProtocolName, req.TokenSymbol, req.Amount)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handlePortfolioRefresh(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	view, err := s.svcs.Portfolio.Refresh(c.Request.Context(), wallet)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handlePortfolioDemo(c *gin.Context) {
	wallet := c.Query("wallet")
	if wallet == "" {
		wallet = config.DemoWallet
	}
	view, err := s.svcs.Portfolio.Get(c.Request.Context(), wallet)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type riskRequest struct {
	RiskPreference string `json:"risk_preference" binding:"required"`
}

func (s *Server) handleSetRisk(c *gin.Context) {
	wallet := c.Param("wallet")
	var req riskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.svcs.Portfolio.SetRisk(c.Request.Context(), wallet, req.RiskPreference); err != nil {
		fail(c, http.StatusBadRequest, "invalid_risk", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallet_address":  wallet,
		"risk_preference": req.RiskPreference,
	})
}

type demoHoldingRequest struct {
	WalletAddress string  `json:"wallet_address"`
	TokenSymbol   string  `json:"token_symbol" binding:"required"`
	Amount        float64 `json:"amount"`
}

func (s *Server) handleDemoAdd(c *gin.Context) {
	var req demoHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	view, err := s.svcs.Portfolio.AddDemoHolding(c.Request.Context(), req.WalletAddress, req.TokenSymbol, req.Amount)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleDemoUpdate(c *gin.Context) {
	var req demoHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	view, err := s.svcs.Portfolio.SetDemoHolding(c.Request.Context(), req.WalletAddress, req.TokenSymbol, req.Amount)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleDemoRemove(c *gin.Context) {
	var req demoHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	view, err := s.svcs.Portfolio.RemoveDemoHolding(c.Request.Context(), req.WalletAddress, req.TokenSymbol)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleOnchain(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	if s.svcs.Chain == nil {
		fail(c, http.StatusServiceUnavailable, "no_rpc", "No Ethereum RPC provider is configured.")
		return
	}
	bal, err := s.svcs.Chain.NativeBalance(c.Request.Context(), wallet)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

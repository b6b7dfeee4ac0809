package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func vaultID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid_vault_id", "Vault id must be a positive integer.")
		return 0, false
	}
	return id, true
}

func (s *Server) handleVaultList(c *gin.Context) {
	vaults, err := s.svcs.Vaults.List(c.Request.Context())
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(vaults), "vaults": vaults})
}

func (s *Server) handleVaultGet(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	v, err := s.svcs.Vaults.Get(c.Request.Context(), id)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type generateVaultRequest struct {
	RiskLevel string `json:"risk_level" binding:"required"`
	Name      string `json:"name"`
}

func (s *Server) handleVaultGenerate(c *gin.Context) {
	var req generateVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	v, err := s.svcs.Vaults.Generate(c.Request.Context(), req.RiskLevel, req.Name)
	if err != nil {
		fail(c, http.StatusBadRequest, "generate_failed", err.Error())
		return
	}
	c.JSON(http.StatusCreated, v)
}

type simulateDepositRequest struct {
	VaultID   int64   `json:"vault_id" binding:"required"`
	AmountUSD float64 `json:"amount_usd" binding:"required"`
	Subscribe bool    `json:"subscribe"`
}

func (s *Server) handleVaultSimulate(c *gin.Context) {
	var req simulateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sim, err := s.svcs.Vaults.SimulateDeposit(c.Request.Context(), req.VaultID, req.AmountUSD, req.Subscribe)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sim)
}

func (s *Server) handleVaultRefresh(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	res, err := s.svcs.Vaults.Refresh(c.Request.Context(), id)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleVaultLogs(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	logs, err := s.svcs.Vaults.Logs(c.Request.Context(), id, limit)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vault_id": id, "count": len(logs), "logs": logs})
}

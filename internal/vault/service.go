// Package vault manages AI-curated allocation presets: generation from live
// protocol data, threshold-gated refreshes and deposit simulation.
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/autodefi-ai/autodefi/internal/agent"
	"github.com/autodefi-ai/autodefi/internal/store"
)

const (
	// refresh thresholds: anything smaller is not worth the churn
	apyDeltaThreshold        = 0.5
	allocationShiftThreshold = 10.0

	// allocations are renormalized when their sum drifts past this
	normalizeTolerance = 1.0

	vaultPromptMaxTokens = 800
)

// Repo is the database surface the vault service needs.
type Repo interface {
	ListVaults(ctx context.Context) ([]store.Vault, error)
	GetVault(ctx context.Context, id int64) (*store.Vault, error)
	InsertVault(ctx context.Context, v store.Vault) (*store.Vault, error)
	UpdateVault(ctx context.Context, id int64, allocations []store.Allocation, expectedAPY float64, aiDescription string) error
	InsertVaultLog(ctx context.Context, l store.VaultLog) error
	ListVaultLogs(ctx context.Context, vaultID int64, limit int) ([]store.VaultLog, error)
	InsertSubscription(ctx context.Context, sub store.VaultSubscription) (*store.VaultSubscription, error)
}

// ProtocolSource supplies the live protocol snapshot.
type ProtocolSource interface {
	Protocols(ctx context.Context, fresh bool, names []string) ([]store.ProtocolData, string, error)
}

type Service struct {
	repo      Repo
	protocols ProtocolSource
	chat      agent.ChatClient
	model     string
	log       *zap.Logger
}

// NewService wires the vault service. chat may be nil, which forces the
// rule-based allocation splits.
func NewService(repo Repo, protocols ProtocolSource, chat agent.ChatClient, model string, log *zap.Logger) *Service {
	return &Service{repo: repo, protocols: protocols, chat: chat, model: model, log: log}
}

// candidate is one proposed allocation set before persistence.
type candidate struct {
	Name        string
	Description string
	Allocations []store.Allocation
	Reasoning   string
	Confidence  float64
	Source      string
}

// Generate builds and stores a new vault for a risk level.
func (s *Service) Generate(ctx context.Context, risk, name string) (*store.Vault, error) {
	risk = strings.ToLower(risk)
	switch risk {
	case "low", "medium", "high":
	default:
		return nil, fmt.Errorf("invalid risk level %q", risk)
	}

	protocols, _, err := s.protocols.Protocols(ctx, false, nil)
	if err != nil {
		return nil, fmt.Errorf("load protocols: %w", err)
	}
	if len(protocols) == 0 {
		return nil, fmt.Errorf("no protocol data available")
	}

	cand := s.propose(ctx, risk, protocols)
	if name != "" {
		cand.Name = name
	}

	cand.Allocations = NormalizeAllocations(cand.Allocations)
	apy := ExpectedAPY(cand.Allocations, protocols)

	inserted, err := s.repo.InsertVault(ctx, store.Vault{
		Name:          cand.Name,
		Description:   cand.Description,
		RiskLevel:     risk,
		ExpectedAPY:   apy,
		Allocations:   cand.Allocations,
		AIDescription: cand.Reasoning,
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, inserted.ID, "generate", cand, apy)
	s.log.Info("vault generated",
		zap.Int64("vault_id", inserted.ID),
		zap.String("risk", risk),
		zap.String("source", cand.Source),
		zap.Float64("expected_apy", apy),
	)
	return inserted, nil
}

// RefreshResult reports what a refresh pass did to one vault.
type RefreshResult struct {
	VaultID  int64   `json:"vault_id"`
	Applied  bool    `json:"applied"`
	OldAPY   float64 `json:"old_apy"`
	NewAPY   float64 `json:"new_apy"`
	MaxShift float64 `json:"max_allocation_shift"`
	Reason   string  `json:"reason"`
}

// Refresh re-evaluates a vault against current market data and applies the
// new allocation set only when it clears the update thresholds.
func (s *Service) Refresh(ctx context.Context, vaultID int64) (*RefreshResult, error) {
	v, err := s.repo.GetVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	protocols, _, err := s.protocols.Protocols(ctx, false, nil)
	if err != nil {
		s.logError(ctx, vaultID, fmt.Errorf("load protocols: %w", err))
		return nil, fmt.Errorf("load protocols: %w", err)
	}
	if len(protocols) == 0 {
		err := fmt.Errorf("no protocol data available")
		s.logError(ctx, vaultID, err)
		return nil, err
	}

	cand := s.propose(ctx, v.RiskLevel, protocols)
	cand.Allocations = NormalizeAllocations(cand.Allocations)
	newAPY := ExpectedAPY(cand.Allocations, protocols)
	oldAPY := v.ExpectedAPY

	shift := MaxShift(v.Allocations, cand.Allocations)
	res := &RefreshResult{
		VaultID:  vaultID,
		OldAPY:   oldAPY,
		NewAPY:   newAPY,
		MaxShift: shift,
	}

	if math.Abs(newAPY-oldAPY) < apyDeltaThreshold && shift < allocationShiftThreshold {
		res.Reason = fmt.Sprintf("below thresholds: apy delta %.2f, max shift %.1f", math.Abs(newAPY-oldAPY), shift)
		s.log.Debug("vault refresh skipped", zap.Int64("vault_id", vaultID), zap.String("reason", res.Reason))
		return res, nil
	}

	if err := s.repo.UpdateVault(ctx, vaultID, cand.Allocations, newAPY, cand.Reasoning); err != nil {
		s.logError(ctx, vaultID, err)
		return nil, err
	}
	res.Applied = true
	res.Reason = "thresholds cleared"
	s.logEvent(ctx, vaultID, "update", cand, newAPY)

	s.log.Info("vault refreshed",
		zap.Int64("vault_id", vaultID),
		zap.Float64("old_apy", oldAPY),
		zap.Float64("new_apy", newAPY),
		zap.Float64("max_shift", shift),
	)
	return res, nil
}

func (s *Service) logEvent(ctx context.Context, vaultID int64, event string, cand candidate, apy float64) {
	payload, _ := json.Marshal(map[string]any{
		"allocations":  cand.Allocations,
		"expected_apy": apy,
		"source":       cand.Source,
	})
	err := s.repo.InsertVaultLog(ctx, store.VaultLog{
		VaultID:    vaultID,
		EventType:  event,
		Payload:    payload,
		Summary:    cand.Reasoning,
		Confidence: cand.Confidence,
		AIModel:    s.model,
	})
	if err != nil {
		s.log.Warn("vault log write failed", zap.Int64("vault_id", vaultID), zap.Error(err))
	}
}

func (s *Service) logError(ctx context.Context, vaultID int64, cause error) {
	err := s.repo.InsertVaultLog(ctx, store.VaultLog{
		VaultID:   vaultID,
		EventType: "error",
		Summary:   cause.Error(),
		AIModel:   s.model,
	})
	if err != nil {
		s.log.Warn("vault error log write failed", zap.Int64("vault_id", vaultID), zap.Error(err))
	}
}

// DepositSimulation is the projected outcome of parking funds in a vault.
type DepositSimulation struct {
	VaultID            int64             `json:"vault_id"`
	DepositUSD         float64           `json:"deposit_usd"`
	ExpectedAPY        float64           `json:"expected_apy"`
	ExpectedAnnualGain float64           `json:"expected_annual_gain"`
	Breakdown          []DepositPosition `json:"breakdown"`
	SubscriptionID     int64             `json:"subscription_id,omitempty"`
}

type DepositPosition struct {
	ProtocolName string  `json:"protocol_name"`
	Percent      float64 `json:"percent"`
	AmountUSD    float64 `json:"amount_usd"`
}

// SimulateDeposit projects the annual gain of a deposit and optionally
// records a subscription.
func (s *Service) SimulateDeposit(ctx context.Context, vaultID int64, amountUSD float64, subscribe bool) (*DepositSimulation, error) {
	if amountUSD <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive")
	}
	v, err := s.repo.GetVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	sim := &DepositSimulation{
		VaultID:            v.ID,
		DepositUSD:         amountUSD,
		ExpectedAPY:        v.ExpectedAPY,
		ExpectedAnnualGain: amountUSD * v.ExpectedAPY / 100,
	}
	for _, a := range v.Allocations {
		sim.Breakdown = append(sim.Breakdown, DepositPosition{
			ProtocolName: a.ProtocolName,
			Percent:      a.Percent,
			AmountUSD:    amountUSD * a.Percent / 100,
		})
	}

	if subscribe {
		sub, err := s.repo.InsertSubscription(ctx, store.VaultSubscription{
			VaultID:       v.ID,
			DepositAmount: amountUSD,
		})
		if err != nil {
			return nil, err
		}
		sim.SubscriptionID = sub.ID
	}
	return sim, nil
}

// List and Get pass through to storage so handlers depend on one service.

func (s *Service) List(ctx context.Context) ([]store.Vault, error) {
	return s.repo.ListVaults(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*store.Vault, error) {
	return s.repo.GetVault(ctx, id)
}

func (s *Service) Logs(ctx context.Context, vaultID int64, limit int) ([]store.VaultLog, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListVaultLogs(ctx, vaultID, limit)
}

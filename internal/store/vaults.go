package store

import (
	"context"
	"fmt"
	"time"
)

// ListVaults returns all vaults, newest first.
func (s *Store) ListVaults(ctx context.Context) ([]Vault, error) {
	raw, _, err := s.db.From("vaults").
		Select("*", "", false).
		Order("created_at", &orderDesc).
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select vaults: %w", err)
	}
	var rows []Vault
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetVault returns one vault by id.
func (s *Store) GetVault(ctx context.Context, id int64) (*Vault, error) {
	raw, _, err := s.db.From("vaults").
		Select("*", "", false).
		Eq("id", itoa(id)).
		Limit(1, "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select vault %d: %w", id, err)
	}
	var rows []Vault
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

// InsertVault stores a newly generated vault and returns it with its id.
func (s *Store) InsertVault(ctx context.Context, v Vault) (*Vault, error) {
	raw, _, err := s.db.From("vaults").
		Insert(v, false, "", "representation", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert vault %q: %w", v.Name, err)
	}
	var rows []Vault
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

// UpdateVault applies a refreshed allocation set and APY to a vault.
func (s *Store) UpdateVault(ctx context.Context, id int64, allocations []Allocation, expectedAPY float64, aiDescription string) error {
	_, _, err := s.db.From("vaults").
		Update(map[string]any{
			"allocations":    allocations,
			"expected_apy":   expectedAPY,
			"ai_description": aiDescription,
			"last_updated":   time.Now().UTC().Format(time.RFC3339),
		}, "", "").
		Eq("id", itoa(id)).
		ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("update vault %d: %w", id, err)
	}
	return nil
}

// InsertVaultLog appends an event to a vault's audit trail.
func (s *Store) InsertVaultLog(ctx context.Context, l VaultLog) error {
	_, _, err := s.db.From("vault_ai_logs").
		Insert(l, false, "", "minimal", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("insert vault log for vault %d: %w", l.VaultID, err)
	}
	return nil
}

// ListVaultLogs returns the newest log entries for a vault.
func (s *Store) ListVaultLogs(ctx context.Context, vaultID int64, limit int) ([]VaultLog, error) {
	q := s.db.From("vault_ai_logs").
		Select("*", "", false).
		Eq("vault_id", itoa(vaultID)).
		Order("created_at", &orderDesc)
	if limit > 0 {
		q = q.Limit(limit, "")
	}
	raw, _, err := q.ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select vault logs for %d: %w", vaultID, err)
	}
	var rows []VaultLog
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertSubscription records a simulated deposit into a vault.
func (s *Store) InsertSubscription(ctx context.Context, sub VaultSubscription) (*VaultSubscription, error) {
	raw, _, err := s.db.From("vault_subscriptions").
		Insert(sub, false, "", "representation", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert vault subscription: %w", err)
	}
	var rows []VaultSubscription
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

package store

import (
	"context"
	"fmt"
)

// GetUserByWallet looks a user up by wallet address.
func (s *Store) GetUserByWallet(ctx context.Context, wallet string) (*User, error) {
	raw, _, err := s.db.From("users").
		Select("*", "", false).
		Eq("wallet_address", wallet).
		Limit(1, "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select user %s: %w", wallet, err)
	}
	var rows []User
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

// CreateUser inserts a user row and returns it with the generated id.
func (s *Store) CreateUser(ctx context.Context, wallet, riskPreference string) (*User, error) {
	u := User{WalletAddress: wallet, RiskPreference: riskPreference}
	raw, _, err := s.db.From("users").
		Insert(u, false, "", "representation", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert user %s: %w", wallet, err)
	}
	var rows []User
	if err := decodeRows(raw, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

// EnsureUser returns the user for wallet, creating it with the default
// medium risk preference on first contact.
func (s *Store) EnsureUser(ctx context.Context, wallet string) (*User, error) {
	u, err := s.GetUserByWallet(ctx, wallet)
	if err == nil {
		return u, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	return s.CreateUser(ctx, wallet, "medium")
}

// SetRiskPreference updates the stored risk preference for a wallet.
func (s *Store) SetRiskPreference(ctx context.Context, wallet, risk string) error {
	_, _, err := s.db.From("users").
		Update(map[string]any{"risk_preference": risk}, "", "").
		Eq("wallet_address", wallet).
		ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("update risk preference for %s: %w", wallet, err)
	}
	return nil
}

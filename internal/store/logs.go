package store

import (
	"context"
	"fmt"
)

// InsertDecisionLog records an AI recommendation for audit.
func (s *Store) InsertDecisionLog(ctx context.Context, l DecisionLog) error {
	_, _, err := s.db.From("ai_decision_logs").
		Insert(l, false, "", "minimal", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("insert decision log for user %d: %w", l.UserID, err)
	}
	return nil
}

// InsertTransactionLog records a simulated transaction.
func (s *Store) InsertTransactionLog(ctx context.Context, l TransactionLog) error {
	_, _, err := s.db.From("transaction_logs").
		Insert(l, false, "", "minimal", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("insert transaction log for user %d: %w", l.UserID, err)
	}
	return nil
}

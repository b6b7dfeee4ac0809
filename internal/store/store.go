// Package store wraps the Supabase PostgREST API with typed repositories
// for the AutoDeFi tables.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a select by key matches no rows.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db  *postgrest.Client
	log *zap.Logger
}

// New connects to the PostgREST endpoint of a Supabase project. restURL is
// the full /rest/v1 URL, key the service role or anon key.
func New(restURL, key string, log *zap.Logger) *Store {
	headers := map[string]string{
		"apikey":        key,
		"Authorization": "Bearer " + key,
	}
	return &Store{
		db:  postgrest.NewClient(restURL, "", headers),
		log: log,
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// decodeRows unmarshals a PostgREST array response into out.
func decodeRows(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}

// one picks the single row out of a decoded slice, mapping empty to
// ErrNotFound.
func one[T any](rows []T) (*T, error) {
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// Ping issues a cheap head request against the users table so startup can
// fail fast on bad credentials.
func (s *Store) Ping(ctx context.Context) error {
	_, _, err := s.db.From("users").Select("id", "exact", true).Limit(1, "").ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("supabase ping: %w", err)
	}
	return nil
}

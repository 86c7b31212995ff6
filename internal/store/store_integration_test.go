//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	p, err := NewPostgres(ctx, dbURL)
	require.NoError(t, err)

	_, err = p.pool.Exec(ctx, `TRUNCATE decoy_sessions`)
	require.NoError(t, err)

	t.Cleanup(p.Close)
	return p
}

func TestIntegration_PostgresStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) SessionStore {
		return setupPostgres(t)
	})
}

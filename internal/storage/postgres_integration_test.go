//go:build integration

package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"
)

// Runs against the database named by CARELOG_TEST_DSN, for example
// "host=localhost port=5432 user=postgres password=postgres dbname=carelog_test sslmode=disable".
func TestEngine_Postgres_Integration(t *testing.T) {
	dsn := os.Getenv("CARELOG_TEST_DSN")
	if dsn == "" {
		t.Skip("CARELOG_TEST_DSN not set")
	}

	ctx := context.Background()
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.PingContext(ctx))

	e, err := Open(ctx, db, testSchema(1), Options{Dialect: Postgres})
	require.NoError(t, err)
	require.NoError(t, e.Reset(ctx))
	t.Cleanup(func() { _ = e.Reset(ctx) })

	err = e.Run(ctx, []string{"people", "notes"}, ReadWrite, func(ctx context.Context, tx *Tx) error {
		if err := tx.Add(ctx, "people", 1, doc{ID: 1, Name: "林美玲", Room: "301"}); err != nil {
			return err
		}
		return tx.Add(ctx, "notes", 2, doc{ID: 2, Name: "林美玲", Date: "2024/9/26 下午3:04:05", PatientID: 1})
	})
	require.NoError(t, err)

	err = e.Run(ctx, []string{"people"}, ReadWrite, func(ctx context.Context, tx *Tx) error {
		return tx.Add(ctx, "people", 3, doc{ID: 3, Name: "林美玲"})
	})
	assert.ErrorIs(t, err, ErrConstraint)

	err = e.Run(ctx, []string{"notes"}, ReadOnly, func(ctx context.Context, tx *Tx) error {
		got, err := IndexGetAll[doc](ctx, tx, "notes", "name_date", "林美玲", "2024/9/26 下午3:04:05")
		require.NoError(t, err)
		assert.Len(t, got, 1)
		return nil
	})
	require.NoError(t, err)

	st := e.Status(ctx)
	assert.True(t, st.Available)
	assert.Equal(t, 1, st.Version)
}

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func newMockEngine(t *testing.T, opts Options) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema := testSchema(1)
	e := &Engine{
		db:          db,
		schema:      schema,
		collections: map[string]CollectionSpec{},
		opts:        opts,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("test"),
		ids:         &idSource{now: time.Now},
	}
	for _, c := range schema.Collections {
		e.collections[c.Name] = c
	}
	return e, mock
}

func TestRun_CommitFailure(t *testing.T) {
	var reported error
	e, mock := newMockEngine(t, Options{
		Dialect: SQLite,
		OnTransaction: func(_ context.Context, _ Mode, _ time.Duration, err error) {
			reported = err
		},
	})

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM kv_index").WithArgs("notes").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM kv_objects").WithArgs("notes").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	err := e.Run(context.Background(), []string{"notes"}, ReadWrite, func(ctx context.Context, tx *Tx) error {
		return tx.Clear(ctx, "notes")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.Equal(t, err, reported)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_PostgresPlaceholders(t *testing.T) {
	e, mock := newMockEngine(t, Options{Dialect: Postgres})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM kv_objects WHERE collection = \$1`).
		WithArgs("people").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectCommit()

	var n int
	err := e.Run(context.Background(), []string{"people"}, ReadOnly, func(ctx context.Context, tx *Tx) error {
		var err error
		n, err = tx.Count(ctx, "people")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

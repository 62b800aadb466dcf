package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Tx is a transaction scope over a fixed set of collections. It is only
// valid inside the function passed to Engine.Run.
type Tx struct {
	engine *Engine
	tx     *sql.Tx
	mode   Mode
	scope  map[string]CollectionSpec
}

// Run executes fn in a transaction scoped to the named collections. The
// transaction commits when fn returns nil and rolls back otherwise, so
// either all of fn's writes become visible or none do.
func (e *Engine) Run(ctx context.Context, collections []string, mode Mode, fn func(ctx context.Context, tx *Tx) error) (err error) {
	scope := make(map[string]CollectionSpec, len(collections))
	for _, name := range collections {
		spec, ok := e.collections[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCollection, name)
		}
		scope[name] = spec
	}

	ctx, span := e.tracer.Start(ctx, "storage.transaction", trace.WithAttributes(
		attribute.StringSlice("storage.collections", collections),
		attribute.String("storage.mode", mode.String()),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if e.opts.OnTransaction != nil {
			e.opts.OnTransaction(ctx, mode, time.Since(start), err)
		}
	}()

	sqlTx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{engine: e, tx: sqlTx, mode: mode, scope: scope}
	if err := fn(ctx, tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			e.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (tx *Tx) collection(name string, write bool) (CollectionSpec, error) {
	spec, ok := tx.scope[name]
	if !ok {
		return CollectionSpec{}, fmt.Errorf("%w: %s", ErrNotInScope, name)
	}
	if write && tx.mode != ReadWrite {
		return CollectionSpec{}, fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	return spec, nil
}

func (tx *Tx) q(query string) string {
	return tx.engine.q(query)
}

// Get returns the document stored under id, or ErrNotFound.
func (tx *Tx) Get(ctx context.Context, collection string, id int64) (json.RawMessage, error) {
	if _, err := tx.collection(collection, false); err != nil {
		return nil, err
	}

	var body string
	err := tx.tx.QueryRowContext(ctx, tx.q(`SELECT body FROM kv_objects WHERE collection = ? AND id = ?`), collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%d: %w", collection, id, err)
	}
	return json.RawMessage(body), nil
}

// GetAll returns every document in the collection in ascending key order.
func (tx *Tx) GetAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if _, err := tx.collection(collection, false); err != nil {
		return nil, err
	}
	return tx.queryBodies(ctx, tx.q(`SELECT body FROM kv_objects WHERE collection = ? ORDER BY id`), collection)
}

// Count returns the number of documents in the collection.
func (tx *Tx) Count(ctx context.Context, collection string) (int, error) {
	if _, err := tx.collection(collection, false); err != nil {
		return 0, err
	}
	var n int
	if err := tx.tx.QueryRowContext(ctx, tx.q(`SELECT COUNT(*) FROM kv_objects WHERE collection = ?`), collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// IndexGetAll returns the documents whose index key equals key, in
// ascending primary key order. Compound indexes take one value per key
// path field.
func (tx *Tx) IndexGetAll(ctx context.Context, collection, index string, key ...any) ([]json.RawMessage, error) {
	spec, err := tx.collection(collection, false)
	if err != nil {
		return nil, err
	}
	idx, ok := spec.index(index)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, collection, index)
	}
	if len(key) != len(idx.KeyPath) {
		return nil, fmt.Errorf("%w: %s.%s expects %d key parts, got %d", ErrInvalidKey, collection, index, len(idx.KeyPath), len(key))
	}
	encoded, err := KeyOf(key...)
	if err != nil {
		return nil, err
	}

	return tx.queryBodies(ctx, tx.q(`
		SELECT o.body FROM kv_index i
		JOIN kv_objects o ON o.collection = i.collection AND o.id = i.id
		WHERE i.collection = ? AND i.index_name = ? AND i.index_key = ?
		ORDER BY i.id`),
		collection, index, encoded)
}

// Add stores doc under id and fails with ErrKeyExists if the key is taken.
func (tx *Tx) Add(ctx context.Context, collection string, id int64, doc any) error {
	return tx.write(ctx, collection, id, doc, true)
}

// Put stores doc under id, replacing any existing document.
func (tx *Tx) Put(ctx context.Context, collection string, id int64, doc any) error {
	return tx.write(ctx, collection, id, doc, false)
}

func (tx *Tx) write(ctx context.Context, collection string, id int64, doc any, mustBeNew bool) error {
	spec, err := tx.collection(collection, true)
	if err != nil {
		return err
	}

	body, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%d: %w", collection, id, err)
	}
	entries, err := spec.indexEntries(body)
	if err != nil {
		return fmt.Errorf("%s/%d: %w", collection, id, err)
	}

	if mustBeNew {
		var exists int
		err := tx.tx.QueryRowContext(ctx, tx.q(`SELECT 1 FROM kv_objects WHERE collection = ? AND id = ?`), collection, id).Scan(&exists)
		if err == nil {
			return fmt.Errorf("%w: %s/%d", ErrKeyExists, collection, id)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check %s/%d: %w", collection, id, err)
		}
	}

	for _, entry := range entries {
		if !entry.unique {
			continue
		}
		var other int64
		err := tx.tx.QueryRowContext(ctx, tx.q(`
			SELECT id FROM kv_index
			WHERE collection = ? AND index_name = ? AND index_key = ? AND id <> ?
			LIMIT 1`),
			collection, entry.index, entry.key, id).Scan(&other)
		if err == nil {
			return fmt.Errorf("%w: %s.%s already used by %d", ErrConstraint, collection, entry.index, other)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check %s.%s: %w", collection, entry.index, err)
		}
	}

	if _, err := tx.tx.ExecContext(ctx, tx.q(`
		INSERT INTO kv_objects (collection, id, body) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`),
		collection, id, string(body),
	); err != nil {
		return fmt.Errorf("failed to write %s/%d: %w", collection, id, err)
	}

	if _, err := tx.tx.ExecContext(ctx, tx.q(`DELETE FROM kv_index WHERE collection = ? AND id = ?`), collection, id); err != nil {
		return fmt.Errorf("failed to reindex %s/%d: %w", collection, id, err)
	}
	for _, entry := range entries {
		if _, err := tx.tx.ExecContext(ctx, tx.q(`INSERT INTO kv_index (collection, index_name, index_key, id) VALUES (?, ?, ?, ?)`),
			collection, entry.index, entry.key, id); err != nil {
			return fmt.Errorf("failed to index %s/%d: %w", collection, id, err)
		}
	}

	tx.engine.ids.observe(id)
	return nil
}

// Delete removes the document under id. Deleting a missing key succeeds.
func (tx *Tx) Delete(ctx context.Context, collection string, id int64) error {
	if _, err := tx.collection(collection, true); err != nil {
		return err
	}
	if _, err := tx.tx.ExecContext(ctx, tx.q(`DELETE FROM kv_index WHERE collection = ? AND id = ?`), collection, id); err != nil {
		return fmt.Errorf("failed to unindex %s/%d: %w", collection, id, err)
	}
	if _, err := tx.tx.ExecContext(ctx, tx.q(`DELETE FROM kv_objects WHERE collection = ? AND id = ?`), collection, id); err != nil {
		return fmt.Errorf("failed to delete %s/%d: %w", collection, id, err)
	}
	return nil
}

// Clear removes every document in the collection.
func (tx *Tx) Clear(ctx context.Context, collection string) error {
	if _, err := tx.collection(collection, true); err != nil {
		return err
	}
	return tx.engine.clear(ctx, tx.tx, collection)
}

func (tx *Tx) queryBodies(ctx context.Context, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := tx.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(body))
	}
	return out, rows.Err()
}

func encodeDocument(doc any) ([]byte, error) {
	switch v := doc.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("invalid JSON document")
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, errors.New("invalid JSON document")
		}
		return v, nil
	default:
		return json.Marshal(doc)
	}
}

// Get decodes the document stored under id into T.
func Get[T any](ctx context.Context, tx *Tx, collection string, id int64) (T, error) {
	var out T
	raw, err := tx.Get(ctx, collection, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s/%d: %w", collection, id, err)
	}
	return out, nil
}

// GetAll decodes every document in the collection into T.
func GetAll[T any](ctx context.Context, tx *Tx, collection string) ([]T, error) {
	raws, err := tx.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](collection, raws)
}

// IndexGetAll decodes the documents matching an index key into T.
func IndexGetAll[T any](ctx context.Context, tx *Tx, collection, index string, key ...any) ([]T, error) {
	raws, err := tx.IndexGetAll(ctx, collection, index, key...)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](collection, raws)
}

func decodeAll[T any](collection string, raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode document in %s: %w", collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Mode is the access mode of a transaction scope.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// Options tune an Engine.
type Options struct {
	Dialect Dialect

	// AllowDestructiveUpgrade lets Open clear a collection whose index
	// declaration changed incompatibly. Without it Open fails with
	// ErrUpgradeRequiresReset and leaves the data untouched.
	AllowDestructiveUpgrade bool

	Logger *zap.Logger

	// OnTransaction is called once per Run after commit or rollback.
	OnTransaction func(ctx context.Context, mode Mode, elapsed time.Duration, err error)

	Now func() time.Time
}

// Engine is a versioned object store kept in a SQL database. Each
// collection holds JSON documents under int64 keys with secondary indexes
// maintained on every write.
type Engine struct {
	db          *sql.DB
	schema      Schema
	collections map[string]CollectionSpec
	opts        Options
	logger      *zap.Logger
	tracer      trace.Tracer
	ids         *idSource
}

// Status describes the store as it exists in the database.
type Status struct {
	Available   bool     `json:"available"`
	Name        string   `json:"name"`
	Version     int      `json:"version"`
	Collections []string `json:"stores"`
	Error       string   `json:"error,omitempty"`
}

// Open prepares the bookkeeping tables and brings the store to the
// declared schema version. The whole version check and upgrade runs in a
// single transaction.
func Open(ctx context.Context, db *sql.DB, schema Schema, opts Options) (*Engine, error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	if opts.Dialect == "" {
		opts.Dialect = SQLite
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		db:          db,
		schema:      schema,
		collections: make(map[string]CollectionSpec, len(schema.Collections)),
		opts:        opts,
		logger:      opts.Logger,
		tracer:      otel.Tracer("carelog/storage"),
		ids:         &idSource{now: opts.Now},
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	for _, c := range schema.Collections {
		e.collections[c.Name] = c
	}

	for _, stmt := range bootstrapStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create storage tables: %w", err)
		}
	}

	if err := e.migrate(ctx); err != nil {
		return nil, err
	}

	var maxID sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(id) FROM kv_objects`).Scan(&maxID); err != nil {
		return nil, fmt.Errorf("failed to read highest key: %w", err)
	}
	e.ids.observe(maxID.Int64)

	return e, nil
}

// DB returns the underlying database handle.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// Schema returns the declared schema.
func (e *Engine) Schema() Schema {
	return e.schema
}

// NextID returns a time-based key that is strictly greater than every key
// this engine has handed out or seen written.
func (e *Engine) NextID() int64 {
	return e.ids.next()
}

func (e *Engine) q(query string) string {
	return e.opts.Dialect.rebind(query)
}

func (e *Engine) migrate(ctx context.Context) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, found, err := e.readVersion(ctx, tx)
	if err != nil {
		return err
	}
	existing, err := e.readCollections(ctx, tx)
	if err != nil {
		return err
	}

	switch {
	case !found:
		for _, c := range e.schema.Collections {
			if err := e.writeCollection(ctx, tx, c); err != nil {
				return err
			}
		}
		e.logger.Info("Store created",
			zap.String("store", e.schema.Name),
			zap.Int("version", e.schema.Version))

	case stored > e.schema.Version:
		return fmt.Errorf("%w: stored %d, declared %d", ErrVersionDowngrade, stored, e.schema.Version)

	case stored == e.schema.Version:
		for _, c := range e.schema.Collections {
			cur, ok := existing[c.Name]
			if !ok {
				return fmt.Errorf("%w: collection %q is missing", ErrSchemaMismatch, c.Name)
			}
			if !sameIndexes(cur, c.Indexes) {
				return fmt.Errorf("%w: indexes of %q differ", ErrSchemaMismatch, c.Name)
			}
		}
		return nil

	default:
		if err := e.upgrade(ctx, tx, existing); err != nil {
			return err
		}
		e.logger.Info("Store upgraded",
			zap.String("store", e.schema.Name),
			zap.Int("from", stored),
			zap.Int("to", e.schema.Version))
	}

	if _, err := tx.ExecContext(ctx, e.q(`
		INSERT INTO kv_schema (name, version, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET version = excluded.version, updated_at = excluded.updated_at`),
		e.schema.Name, e.schema.Version, e.opts.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

func (e *Engine) upgrade(ctx context.Context, tx *sql.Tx, existing map[string][]IndexSpec) error {
	for _, c := range e.schema.Collections {
		cur, ok := existing[c.Name]
		if !ok {
			if err := e.writeCollection(ctx, tx, c); err != nil {
				return err
			}
			continue
		}

		added, removed, changed := diffIndexes(cur, c.Indexes)
		if len(changed) > 0 {
			if !e.opts.AllowDestructiveUpgrade {
				return fmt.Errorf("%w: collection %q changes indexes %v", ErrUpgradeRequiresReset, c.Name, changed)
			}
			e.logger.Warn("Clearing collection for incompatible index change",
				zap.String("collection", c.Name),
				zap.Strings("indexes", changed))
			if err := e.clear(ctx, tx, c.Name); err != nil {
				return err
			}
			if err := e.writeCollection(ctx, tx, c); err != nil {
				return err
			}
			continue
		}

		for _, idx := range removed {
			if _, err := tx.ExecContext(ctx, e.q(`DELETE FROM kv_index WHERE collection = ? AND index_name = ?`), c.Name, idx.Name); err != nil {
				return fmt.Errorf("failed to drop index %s.%s: %w", c.Name, idx.Name, err)
			}
		}
		if len(added) > 0 {
			if err := e.backfill(ctx, tx, c.Name, added); err != nil {
				return err
			}
		}
		if err := e.writeCollection(ctx, tx, c); err != nil {
			return err
		}
	}
	return nil
}

// backfill builds new indexes over the documents already stored.
func (e *Engine) backfill(ctx context.Context, tx *sql.Tx, collection string, indexes []IndexSpec) error {
	rows, err := tx.QueryContext(ctx, e.q(`SELECT id, body FROM kv_objects WHERE collection = ? ORDER BY id`), collection)
	if err != nil {
		return fmt.Errorf("failed to read %s for backfill: %w", collection, err)
	}
	type object struct {
		id   int64
		body string
	}
	var objects []object
	for rows.Next() {
		var o object
		if err := rows.Scan(&o.id, &o.body); err != nil {
			rows.Close()
			return err
		}
		objects = append(objects, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	spec := CollectionSpec{Name: collection, Indexes: indexes}
	seen := make(map[string]int64)
	for _, o := range objects {
		entries, err := spec.indexEntries([]byte(o.body))
		if err != nil {
			return fmt.Errorf("object %d in %s: %w", o.id, collection, err)
		}
		for _, entry := range entries {
			if entry.unique {
				k := entry.index + keySeparator + entry.key
				if other, dup := seen[k]; dup {
					return fmt.Errorf("%w: %s.%s shared by %d and %d", ErrConstraint, collection, entry.index, other, o.id)
				}
				seen[k] = o.id
			}
			if _, err := tx.ExecContext(ctx, e.q(`INSERT INTO kv_index (collection, index_name, index_key, id) VALUES (?, ?, ?, ?)`),
				collection, entry.index, entry.key, o.id); err != nil {
				return fmt.Errorf("failed to backfill %s.%s: %w", collection, entry.index, err)
			}
		}
	}

	e.logger.Debug("Backfilled indexes",
		zap.String("collection", collection),
		zap.Int("objects", len(objects)))
	return nil
}

func (e *Engine) readVersion(ctx context.Context, tx *sql.Tx) (int, bool, error) {
	var version int
	err := tx.QueryRowContext(ctx, e.q(`SELECT version FROM kv_schema WHERE name = ?`), e.schema.Name).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, true, nil
}

func (e *Engine) readCollections(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}) (map[string][]IndexSpec, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, indexes FROM kv_collections`)
	if err != nil {
		return nil, fmt.Errorf("failed to read collections: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]IndexSpec)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		var indexes []IndexSpec
		if err := json.Unmarshal([]byte(raw), &indexes); err != nil {
			return nil, fmt.Errorf("corrupt index declaration for %s: %w", name, err)
		}
		out[name] = indexes
	}
	return out, rows.Err()
}

func (e *Engine) writeCollection(ctx context.Context, tx *sql.Tx, c CollectionSpec) error {
	indexes := c.Indexes
	if indexes == nil {
		indexes = []IndexSpec{}
	}
	raw, err := json.Marshal(indexes)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, e.q(`
		INSERT INTO kv_collections (name, indexes) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET indexes = excluded.indexes`),
		c.Name, string(raw),
	); err != nil {
		return fmt.Errorf("failed to declare collection %s: %w", c.Name, err)
	}
	return nil
}

func (e *Engine) clear(ctx context.Context, tx *sql.Tx, collection string) error {
	if _, err := tx.ExecContext(ctx, e.q(`DELETE FROM kv_index WHERE collection = ?`), collection); err != nil {
		return fmt.Errorf("failed to clear index of %s: %w", collection, err)
	}
	if _, err := tx.ExecContext(ctx, e.q(`DELETE FROM kv_objects WHERE collection = ?`), collection); err != nil {
		return fmt.Errorf("failed to clear %s: %w", collection, err)
	}
	return nil
}

// Status reports the stored version and collections. It never returns an
// error; an unreachable database is reported as unavailable.
func (e *Engine) Status(ctx context.Context) Status {
	st := Status{Name: e.schema.Name, Collections: []string{}}

	if err := e.db.PingContext(ctx); err != nil {
		st.Error = err.Error()
		return st
	}

	err := e.db.QueryRowContext(ctx, e.q(`SELECT version FROM kv_schema WHERE name = ?`), e.schema.Name).Scan(&st.Version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		st.Error = err.Error()
		return st
	}

	collections, err := e.readCollections(ctx, e.db)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	for name := range collections {
		st.Collections = append(st.Collections, name)
	}
	sort.Strings(st.Collections)

	st.Available = true
	return st
}

// Reset deletes every collection and its contents and reinstalls the
// declared schema.
func (e *Engine) Reset(ctx context.Context) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM kv_index`,
		`DELETE FROM kv_objects`,
		`DELETE FROM kv_collections`,
		`DELETE FROM kv_schema`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset store: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	e.logger.Warn("Store reset", zap.String("store", e.schema.Name))
	return e.migrate(ctx)
}

func sameIndexes(a, b []IndexSpec) bool {
	added, removed, changed := diffIndexes(a, b)
	return len(added) == 0 && len(removed) == 0 && len(changed) == 0
}

// diffIndexes compares stored indexes against declared ones. An index that
// keeps its name but changes key path or uniqueness is reported as changed.
func diffIndexes(stored, declared []IndexSpec) (added, removed []IndexSpec, changed []string) {
	byName := make(map[string]IndexSpec, len(stored))
	for _, idx := range stored {
		byName[idx.Name] = idx
	}
	for _, idx := range declared {
		cur, ok := byName[idx.Name]
		switch {
		case !ok:
			added = append(added, idx)
		case !cur.equal(idx):
			changed = append(changed, idx.Name)
		}
		delete(byName, idx.Name)
	}
	for _, idx := range stored {
		if _, gone := byName[idx.Name]; gone {
			removed = append(removed, idx)
		}
	}
	return added, removed, changed
}

type idSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (s *idSource) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

func (s *idSource) observe(id int64) {
	s.mu.Lock()
	if id > s.last {
		s.last = id
	}
	s.mu.Unlock()
}

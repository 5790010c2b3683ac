package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/config"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// querier is satisfied by both the pool (auto-commit) and an open pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// schemaStatements create the statement table. Each runs on its own since the
// extended protocol rejects multi-statement strings.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS kao_statements (
		subject         TEXT NOT NULL,
		predicate       TEXT NOT NULL,
		object_kind     TEXT NOT NULL,
		object_value    TEXT NOT NULL,
		object_datatype TEXT NOT NULL DEFAULT '',
		object_lang     TEXT NOT NULL DEFAULT '',
		context         TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (context, subject, predicate, object_kind, object_value, object_datatype, object_lang)
	);`,
	`CREATE INDEX IF NOT EXISTS kao_statements_subject_idx ON kao_statements (subject);`,
	`CREATE INDEX IF NOT EXISTS kao_statements_predicate_object_idx ON kao_statements (predicate, object_value);`,
}

const (
	sqlInsertStatement = `
        INSERT INTO kao_statements (subject, predicate, object_kind, object_value, object_datatype, object_lang, context)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT DO NOTHING;
    `
	sqlSelectStatements = `SELECT subject, predicate, object_kind, object_value, object_datatype, object_lang, context FROM kao_statements`
	sqlOrderStatements  = ` ORDER BY context, subject, predicate, object_kind, object_value`
	sqlDeleteStatements = `DELETE FROM kao_statements`
)

// PostgresRepository stores statements in PostgreSQL. The pool is created on
// first use and shared by every connection handed out afterwards.
type PostgresRepository struct {
	mu      sync.Mutex
	pool    DBPool
	newPool func(ctx context.Context) (DBPool, error)
	closed  bool
	log     *zap.Logger
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repository that dials lazily. A failed dial
// is retried on the next Connection call.
func NewPostgresRepository(cfg config.PostgresConfig, logger *zap.Logger) *PostgresRepository {
	r := NewPostgresRepositoryWithPool(nil, logger)
	r.newPool = func(ctx context.Context) (DBPool, error) {
		return dialPool(ctx, cfg)
	}
	return r
}

// NewPostgresRepositoryWithPool wraps an existing pool.
func NewPostgresRepositoryWithPool(pool DBPool, logger *zap.Logger) *PostgresRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresRepository{
		pool: pool,
		log:  logger.Named("PostgresRepository"),
	}
}

func dialPool(ctx context.Context, cfg config.PostgresConfig) (DBPool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.ConnectTimeout > 0 {
		pcfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func (r *PostgresRepository) acquirePool(ctx context.Context) (DBPool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRepositoryClosed
	}
	if r.pool != nil {
		return r.pool, nil
	}
	if r.newPool == nil {
		return nil, fmt.Errorf("%w: no pool configured", ErrConnection)
	}
	pool, err := r.newPool(ctx)
	if err != nil {
		r.log.Error("Failed to open postgres pool", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	r.pool = pool
	r.log.Info("Postgres pool opened")
	return pool, nil
}

// Connection hands out a connection backed by the shared pool. A pooled
// connection is only pinned while a transaction is open.
func (r *PostgresRepository) Connection(ctx context.Context) (Connection, error) {
	pool, err := r.acquirePool(ctx)
	if err != nil {
		return nil, err
	}
	return &pgConn{pool: pool, autoCommit: true, log: r.log}, nil
}

// Ping verifies the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	pool, err := r.acquirePool(ctx)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: failed to ping database: %w", ErrConnection, err)
	}
	return nil
}

// Migrate creates the statement table and its indexes if they are missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	pool, err := r.acquirePool(ctx)
	if err != nil {
		return err
	}
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	r.log.Info("Schema is up to date")
	return nil
}

// Close shuts the pool down. Later Connection calls fail with ErrRepositoryClosed.
func (r *PostgresRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// pgConn maps the auto-commit switch onto pgx transactions: turning
// auto-commit off begins one, and while it is off every statement call runs
// inside the open transaction.
type pgConn struct {
	pool       DBPool
	tx         pgx.Tx
	autoCommit bool
	closed     bool
	log        *zap.Logger
}

var _ Connection = (*pgConn)(nil)

func (c *pgConn) SetAutoCommit(ctx context.Context, autoCommit bool) error {
	if c.closed {
		return ErrConnectionClosed
	}
	if autoCommit {
		c.autoCommit = true
		return c.Commit(ctx)
	}
	c.autoCommit = false
	_, err := c.querier(ctx)
	return err
}

// querier returns the open transaction, beginning one when auto-commit is off.
func (c *pgConn) querier(ctx context.Context) (querier, error) {
	if c.closed {
		return nil, ErrConnectionClosed
	}
	if c.autoCommit {
		return c.pool, nil
	}
	if c.tx == nil {
		tx, err := c.pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		c.tx = tx
	}
	return c.tx, nil
}

func (c *pgConn) Commit(ctx context.Context) error {
	if c.closed {
		return ErrConnectionClosed
	}
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *pgConn) Rollback(ctx context.Context) error {
	if c.closed {
		return ErrConnectionClosed
	}
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// Close rolls back a transaction that is still open, which returns its pooled
// connection. Closing twice is a no-op.
func (c *pgConn) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	err := c.Rollback(ctx)
	c.closed = true
	if err != nil {
		c.log.Error("Failed to rollback transaction on close", zap.Error(err))
	}
	return err
}

func (c *pgConn) Add(ctx context.Context, contexts schemas.ContextSet, statements ...schemas.Statement) error {
	q, err := c.querier(ctx)
	if err != nil {
		return err
	}
	rows := expand(contexts, statements)
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, st := range rows {
		batch.Queue(sqlInsertStatement,
			string(st.Subject), string(st.Predicate),
			string(st.Object.Kind), st.Object.Value, string(st.Object.Datatype), st.Object.Lang,
			string(st.Context))
	}

	br := q.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	defer func() {
		_ = br.Close()
	}()

	for i := range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert statement %d (subject %s): %w", i, rows[i].Subject, err)
		}
	}
	return nil
}

func (c *pgConn) Remove(ctx context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) (int64, error) {
	if isUnbound(pattern, contexts) {
		return 0, ErrUnboundRemove
	}
	q, err := c.querier(ctx)
	if err != nil {
		return 0, err
	}
	where, args := buildFilter(pattern, contexts)
	tag, err := q.Exec(ctx, sqlDeleteStatements+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete statements: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (c *pgConn) Statements(ctx context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) ([]schemas.Statement, error) {
	q, err := c.querier(ctx)
	if err != nil {
		return nil, err
	}
	where, args := buildFilter(pattern, contexts)
	rows, err := q.Query(ctx, sqlSelectStatements+where+sqlOrderStatements, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements: %w", err)
	}
	defer rows.Close()

	out := []schemas.Statement{}
	for rows.Next() {
		var (
			st                                        schemas.Statement
			subject, predicate, kind, datatype, graph string
		)
		if err := rows.Scan(&subject, &predicate, &kind, &st.Object.Value, &datatype, &st.Object.Lang, &graph); err != nil {
			return nil, fmt.Errorf("failed to scan statement row: %w", err)
		}
		st.Subject = schemas.IRI(subject)
		st.Predicate = schemas.IRI(predicate)
		st.Object.Kind = schemas.TermKind(kind)
		st.Object.Datatype = schemas.IRI(datatype)
		st.Context = schemas.IRI(graph)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

func (c *pgConn) Has(ctx context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) (bool, error) {
	q, err := c.querier(ctx)
	if err != nil {
		return false, err
	}
	where, args := buildFilter(pattern, contexts)
	rows, err := q.Query(ctx, "SELECT EXISTS (SELECT 1 FROM kao_statements"+where+")", args...)
	if err != nil {
		return false, fmt.Errorf("failed to query statements: %w", err)
	}
	defer rows.Close()

	var exists bool
	if rows.Next() {
		if err := rows.Scan(&exists); err != nil {
			return false, fmt.Errorf("failed to scan exists row: %w", err)
		}
	}
	return exists, rows.Err()
}

// buildFilter turns a pattern and scope into a WHERE clause with positional
// arguments. Unbound fields add no condition.
func buildFilter(pattern schemas.Pattern, contexts schemas.ContextSet) (string, []any) {
	var (
		conds []string
		args  []any
	)
	bind := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}

	if pattern.Subject != "" {
		bind("subject", string(pattern.Subject))
	}
	if pattern.Predicate != "" {
		bind("predicate", string(pattern.Predicate))
	}
	if !pattern.Object.IsZero() {
		bind("object_kind", string(pattern.Object.Kind))
		bind("object_value", pattern.Object.Value)
		bind("object_datatype", string(pattern.Object.Datatype))
		bind("object_lang", pattern.Object.Lang)
	}
	if !contexts.IsEmpty() {
		args = append(args, contexts.Strings())
		conds = append(conds, "context = ANY($"+strconv.Itoa(len(args))+")")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Package store provides the statement repositories behind the access objects.
// A Repository hands out short-lived Connections; each Connection carries the
// commit/rollback lifecycle of one unit of work plus the statement-level
// reads and writes the operation helpers need.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrConnection marks every failure to obtain a connection.
	ErrConnection = errors.New("store connection unavailable")
	// ErrPoolExhausted is returned when every pooled connection is in use.
	ErrPoolExhausted = fmt.Errorf("%w: pool exhausted", ErrConnection)
	// ErrRepositoryClosed is returned once the repository has been shut down.
	ErrRepositoryClosed = fmt.Errorf("%w: repository closed", ErrConnection)
	// ErrConnectionClosed is returned by any call on a closed Connection.
	ErrConnectionClosed = errors.New("connection is closed")
	// ErrUnboundRemove guards against deleting the whole store by accident.
	ErrUnboundRemove = errors.New("refusing to remove with an unbound pattern and no contexts")
)

// Repository is the process-scoped entry point to a statement store.
type Repository interface {
	// Connection opens a connection. Failures wrap ErrConnection.
	Connection(ctx context.Context) (Connection, error)
	// Close releases the repository's resources.
	Close() error
}

// Connection is one session with the store. A new connection is in
// auto-commit mode. Commit, Rollback and Close may each fail independently;
// Close must still be called after any failure.
//
// Context sets scope every statement call: an empty set means all graphs for
// reads and removals, and the default graph for additions.
type Connection interface {
	SetAutoCommit(ctx context.Context, autoCommit bool) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error

	// Add stores each statement in every context of the set, or in the
	// statement's own context when the set is empty.
	Add(ctx context.Context, contexts schemas.ContextSet, statements ...schemas.Statement) error
	// Remove deletes the matching statements and reports how many went.
	Remove(ctx context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) (int64, error)
	// Statements returns the matching statements ordered by context, subject,
	// predicate and object.
	Statements(ctx context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) ([]schemas.Statement, error)
	// Has reports whether any statement matches.
	Has(ctx context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) (bool, error)
}

// Open builds the repository selected by cfg.Backend. The postgres pool is
// created lazily on the first Connection call.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemoryRepository(cfg.Memory, logger), nil
	case config.BackendPostgres:
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres backend requires a connection URL")
		}
		return NewPostgresRepository(cfg.Postgres, logger), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// isUnbound reports whether a removal would match everything.
func isUnbound(pattern schemas.Pattern, contexts schemas.ContextSet) bool {
	return pattern.Subject == "" && pattern.Predicate == "" && pattern.Object.IsZero() && contexts.IsEmpty()
}

// expand places statements into their target graphs.
func expand(contexts schemas.ContextSet, statements []schemas.Statement) []schemas.Statement {
	if contexts.IsEmpty() {
		return statements
	}
	out := make([]schemas.Statement, 0, len(statements)*contexts.Len())
	for _, st := range statements {
		for _, g := range contexts.IRIs() {
			st.Context = g
			out = append(out, st)
		}
	}
	return out
}

// inScope reports whether a statement's graph is visible under the set.
func inScope(st schemas.Statement, contexts schemas.ContextSet) bool {
	return contexts.IsEmpty() || contexts.Contains(st.Context)
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/config"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// MemoryRepository is a process-local statement store. It's handy for tests
// and short lived tools where persistence isn't required.
type MemoryRepository struct {
	mu         sync.RWMutex
	statements map[schemas.Statement]struct{}

	// slots bounds open connections; nil means unbounded.
	slots  *semaphore.Weighted
	open   atomic.Int64
	closed atomic.Bool
	log    *zap.Logger
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty store.
func NewMemoryRepository(cfg config.MemoryConfig, logger *zap.Logger) *MemoryRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &MemoryRepository{
		statements: make(map[schemas.Statement]struct{}),
		log:        logger.Named("MemoryRepository"),
	}
	if cfg.MaxConnections > 0 {
		r.slots = semaphore.NewWeighted(cfg.MaxConnections)
	}
	return r
}

// Connection opens a connection, failing with ErrPoolExhausted when every
// slot is taken and ErrRepositoryClosed after Close.
func (r *MemoryRepository) Connection(ctx context.Context) (Connection, error) {
	if r.closed.Load() {
		return nil, ErrRepositoryClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if r.slots != nil && !r.slots.TryAcquire(1) {
		return nil, ErrPoolExhausted
	}
	r.open.Add(1)
	return &memoryConn{repo: r, autoCommit: true}, nil
}

// Close makes the repository unreachable. Existing connections keep working
// until they are closed.
func (r *MemoryRepository) Close() error {
	r.closed.Store(true)
	return nil
}

// OpenConnections reports how many connections have not been closed.
func (r *MemoryRepository) OpenConnections() int64 {
	return r.open.Load()
}

// Len returns the number of committed statements.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.statements)
}

func (r *MemoryRepository) release() {
	r.open.Add(-1)
	if r.slots != nil {
		r.slots.Release(1)
	}
}

// apply writes a change log under the write lock, so a commit is atomic.
func (r *MemoryRepository) apply(changes []change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range changes {
		if c.add {
			r.statements[c.st] = struct{}{}
		} else {
			delete(r.statements, c.st)
		}
	}
	r.log.Debug("Changes applied", zap.Int("changes", len(changes)), zap.Int("statements", len(r.statements)))
}

// match collects committed statements matching the pattern within scope.
func (r *MemoryRepository) match(pattern schemas.Pattern, contexts schemas.ContextSet) map[schemas.Statement]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[schemas.Statement]struct{})
	for st := range r.statements {
		if pattern.Matches(st) && inScope(st, contexts) {
			out[st] = struct{}{}
		}
	}
	return out
}

type change struct {
	add bool
	st  schemas.Statement
}

// memoryConn buffers writes while auto-commit is off, so other connections
// never observe a partial unit of work.
type memoryConn struct {
	mu         sync.Mutex
	repo       *MemoryRepository
	autoCommit bool
	closed     bool
	pending    []change
}

var _ Connection = (*memoryConn)(nil)

func (c *memoryConn) SetAutoCommit(_ context.Context, autoCommit bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if autoCommit && !c.autoCommit {
		c.flushLocked()
	}
	c.autoCommit = autoCommit
	return nil
}

func (c *memoryConn) Commit(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	c.flushLocked()
	return nil
}

func (c *memoryConn) flushLocked() {
	if len(c.pending) == 0 {
		return
	}
	c.repo.apply(c.pending)
	c.pending = nil
}

func (c *memoryConn) Rollback(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	c.pending = nil
	return nil
}

// Close discards uncommitted work and frees the slot. Closing twice is a no-op.
func (c *memoryConn) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.pending = nil
	c.repo.release()
	return nil
}

func (c *memoryConn) Add(_ context.Context, contexts schemas.ContextSet, statements ...schemas.Statement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	changes := make([]change, 0, len(statements))
	for _, st := range expand(contexts, statements) {
		if st.Subject == "" || st.Predicate == "" || st.Object.IsZero() {
			return fmt.Errorf("incomplete statement %v", st)
		}
		changes = append(changes, change{add: true, st: st})
	}
	c.recordLocked(changes)
	return nil
}

func (c *memoryConn) Remove(_ context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrConnectionClosed
	}
	if isUnbound(pattern, contexts) {
		return 0, ErrUnboundRemove
	}
	visible := c.viewLocked(pattern, contexts)
	changes := make([]change, 0, len(visible))
	for st := range visible {
		changes = append(changes, change{add: false, st: st})
	}
	c.recordLocked(changes)
	return int64(len(changes)), nil
}

func (c *memoryConn) Statements(_ context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) ([]schemas.Statement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	visible := c.viewLocked(pattern, contexts)
	out := make([]schemas.Statement, 0, len(visible))
	for st := range visible {
		out = append(out, st)
	}
	sortStatements(out)
	return out, nil
}

func (c *memoryConn) Has(ctx context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrConnectionClosed
	}
	return len(c.viewLocked(pattern, contexts)) > 0, nil
}

func (c *memoryConn) recordLocked(changes []change) {
	if c.autoCommit {
		c.repo.apply(changes)
		return
	}
	c.pending = append(c.pending, changes...)
}

// viewLocked is the committed state with this connection's pending changes
// replayed on top.
func (c *memoryConn) viewLocked(pattern schemas.Pattern, contexts schemas.ContextSet) map[schemas.Statement]struct{} {
	view := c.repo.match(pattern, contexts)
	for _, ch := range c.pending {
		if !pattern.Matches(ch.st) || !inScope(ch.st, contexts) {
			continue
		}
		if ch.add {
			view[ch.st] = struct{}{}
		} else {
			delete(view, ch.st)
		}
	}
	return view
}

func sortStatements(sts []schemas.Statement) {
	sort.Slice(sts, func(i, j int) bool {
		a, b := sts[i], sts[j]
		if a.Context != b.Context {
			return a.Context < b.Context
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		return a.Object.String() < b.Object.String()
	})
}

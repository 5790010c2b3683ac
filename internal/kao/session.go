package kao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kao/internal/metrics"
	"github.com/xkilldash9x/kao/internal/store"
)

// sessionFunc is the one logical operation a session runs.
type sessionFunc[R any] func(ctx context.Context, conn store.Connection) (R, error)

// session carries what every transactional unit of work needs.
type session struct {
	repo    store.Repository
	log     *zap.Logger
	metrics *metrics.Registry
}

// runInSession runs fn on a fresh connection with auto-commit off. It commits
// when fn succeeds and rolls back otherwise, and always closes the connection.
// Commit, rollback and close ignore caller cancellation so the connection is
// released even when ctx is done.
//
// On failure the zero R is returned with a *SessionError, except for a commit
// failure, which returns fn's value as well.
func runInSession[R any](ctx context.Context, s session, op string, fields []zap.Field, fn sessionFunc[R]) (R, error) {
	var zero R
	start := time.Now()
	logger := s.log.With(append([]zap.Field{zap.String("op", op)}, fields...)...)

	conn, err := s.repo.Connection(ctx)
	if err != nil {
		logger.Error("Failed to obtain store connection", zap.String("stage", string(StageConnect)), zap.Error(err))
		s.metrics.ObserveSession(op, metrics.OutcomeConnectFailed, time.Since(start))
		return zero, &SessionError{Op: op, Stage: StageConnect, Err: err}
	}

	release := context.WithoutCancel(ctx)
	defer func() {
		if cerr := conn.Close(release); cerr != nil {
			logger.Warn("Failed to close store connection", zap.Error(cerr))
		}
	}()

	if err := conn.SetAutoCommit(ctx, false); err != nil {
		logger.Error("Failed to begin transaction", zap.String("stage", string(StageBegin)), zap.Error(err))
		s.metrics.ObserveSession(op, metrics.OutcomeBeginFailed, time.Since(start))
		return zero, &SessionError{Op: op, Stage: StageBegin, Err: err}
	}

	value, opErr := invoke(ctx, conn, fn)
	if opErr != nil {
		if rbErr := conn.Rollback(release); rbErr != nil {
			opErr = errors.Join(opErr, fmt.Errorf("rollback failed: %w", rbErr))
		}
		logger.Error("Operation failed, transaction rolled back", zap.String("stage", string(StageOperation)), zap.Error(opErr))
		s.metrics.ObserveSession(op, metrics.OutcomeRolledBack, time.Since(start))
		return zero, &SessionError{Op: op, Stage: StageOperation, Err: opErr}
	}

	if err := conn.Commit(release); err != nil {
		logger.Error("Failed to commit transaction", zap.String("stage", string(StageCommit)), zap.Error(err))
		s.metrics.ObserveSession(op, metrics.OutcomeCommitFailed, time.Since(start))
		return value, &SessionError{Op: op, Stage: StageCommit, Err: err}
	}

	logger.Debug("Transaction committed", zap.Duration("elapsed", time.Since(start)))
	s.metrics.ObserveSession(op, metrics.OutcomeCommitted, time.Since(start))
	return value, nil
}

// invoke turns a panic in fn into an error so the session can roll back.
func invoke[R any](ctx context.Context, conn store.Connection, fn sessionFunc[R]) (value R, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero R
			value, err = zero, fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()
	return fn(ctx, conn)
}

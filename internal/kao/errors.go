package kao

import (
	"errors"
	"fmt"
)

// Stage names the step of a transactional session that failed.
type Stage string

const (
	StageConnect   Stage = "connect"
	StageBegin     Stage = "begin"
	StageOperation Stage = "operation"
	StageCommit    Stage = "commit"
)

// ErrPanic wraps a panic recovered from an operation.
var ErrPanic = errors.New("operation panicked")

// SessionError describes a failed access-object operation. When Stage is
// StageCommit the operation itself succeeded and its value was returned
// alongside the error, but the store may not have persisted it.
type SessionError struct {
	Op    string
	Stage Stage
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("kao %s: %s failed: %v", e.Op, e.Stage, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// IsCommitFailure reports whether err is a session that computed its value
// but failed to commit.
func IsCommitFailure(err error) bool {
	var se *SessionError
	return errors.As(err, &se) && se.Stage == StageCommit
}

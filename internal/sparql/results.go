// Package sparql runs raw queries against a SPARQL 1.1 protocol endpoint and
// exposes their solutions as terms.
package sparql

import "github.com/xkilldash9x/kao/api/schemas"

// Solution binds variable names (without the leading ?) to terms. Unbound
// variables are absent.
type Solution map[string]schemas.Term

// Term returns the binding for name and whether it is bound.
func (s Solution) Term(name string) (schemas.Term, bool) {
	t, ok := s[name]
	return t, ok
}

// Results is a forward-only, non-restartable sequence of solutions.
//
//	for res.Next() {
//		use(res.Solution())
//	}
//	if err := res.Err(); err != nil { ... }
//	res.Close()
type Results interface {
	// Next advances to the next solution and reports whether there is one.
	Next() bool
	// Solution returns the current solution.
	Solution() Solution
	// Err returns the error that stopped iteration, if any.
	Err() error
	// Close releases the underlying response. It is safe to call twice.
	Close() error
}

// SliceResults iterates over solutions already in memory.
type SliceResults struct {
	solutions []Solution
	pos       int
}

// NewSliceResults wraps solutions in a Results.
func NewSliceResults(solutions ...Solution) *SliceResults {
	return &SliceResults{solutions: solutions, pos: -1}
}

// EmptyResults returns a Results with no solutions.
func EmptyResults() Results {
	return NewSliceResults()
}

func (r *SliceResults) Next() bool {
	if r.pos+1 >= len(r.solutions) {
		r.pos = len(r.solutions)
		return false
	}
	r.pos++
	return true
}

func (r *SliceResults) Solution() Solution {
	if r.pos < 0 || r.pos >= len(r.solutions) {
		return nil
	}
	return r.solutions[r.pos]
}

func (r *SliceResults) Err() error   { return nil }
func (r *SliceResults) Close() error { return nil }

// Collect drains res into a slice and closes it. The slice is never nil.
func Collect(res Results) ([]Solution, error) {
	defer res.Close()
	out := []Solution{}
	for res.Next() {
		out = append(out, res.Solution())
	}
	return out, res.Err()
}

package operations

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/store"
)

// Remover deletes instances.
type Remover struct{}

// Remove deletes every statement whose subject is iri within the contexts and
// reports how many were removed. Removing an unknown instance is not an error.
func (Remover) Remove(ctx context.Context, conn store.Connection, iri schemas.IRI, contexts schemas.ContextSet) (int64, error) {
	if iri == "" {
		return 0, ErrEmptyIRI
	}
	n, err := conn.Remove(ctx, schemas.Pattern{Subject: iri}, contexts)
	if err != nil {
		return 0, fmt.Errorf("failed to remove %s: %w", iri, err)
	}
	return n, nil
}

package operations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/store"
	"go.uber.org/zap"
)

// DefaultUniqueIDAttempts bounds identifier generation when none is configured.
const DefaultUniqueIDAttempts = 10

// Creator asserts new instances into the store.
type Creator struct {
	// MaxAttempts bounds how many identifiers CreateWithUniqueID draws.
	MaxAttempts int
	// NewID generates the local name suffix. Defaults to a random UUID.
	NewID func() string

	log *zap.Logger
}

// NewCreator returns a Creator that draws at most maxAttempts identifiers.
func NewCreator(maxAttempts int, logger *zap.Logger) *Creator {
	if maxAttempts < 1 {
		maxAttempts = DefaultUniqueIDAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Creator{
		MaxAttempts: maxAttempts,
		NewID:       uuid.NewString,
		log:         logger.Named("creator"),
	}
}

// Create types iri as a member of class in every context of the set.
func (c *Creator) Create(ctx context.Context, conn store.Connection, class schemas.EntityType, iri schemas.IRI, contexts schemas.ContextSet) (*schemas.Instance, error) {
	if iri == "" {
		return nil, ErrEmptyIRI
	}
	if err := conn.Add(ctx, contexts, typeStatement(iri, class.IRI)); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", iri, err)
	}
	c.log.Debug("Instance created", zap.String("iri", string(iri)), zap.Strings("contexts", contexts.Strings()))
	return schemas.NewInstance(iri, class), nil
}

// CreateWithUniqueID creates an instance named base+prefix+id, drawing a new
// id while the candidate IRI is already used by a member of class in any graph.
func (c *Creator) CreateWithUniqueID(ctx context.Context, conn store.Connection, class schemas.EntityType, base, prefix string, contexts schemas.ContextSet) (*schemas.Instance, error) {
	newID := c.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		candidate := schemas.IRI(base + prefix + newID())
		taken, err := conn.Has(ctx, schemas.Pattern{
			Subject:   candidate,
			Predicate: schemas.RDFType,
			Object:    schemas.NewIRITerm(class.IRI),
		}, schemas.EmptyContexts())
		if err != nil {
			return nil, fmt.Errorf("failed to check identifier %s: %w", candidate, err)
		}
		if taken {
			c.log.Debug("Identifier collision", zap.String("iri", string(candidate)), zap.Int("attempt", attempt))
			continue
		}
		return c.Create(ctx, conn, class, candidate, contexts)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrUniqueIDExhausted, c.MaxAttempts)
}

package operations

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/store"
	"go.uber.org/zap"
)

// Updater merges detached instances back into the store.
type Updater struct {
	Retriever Retriever
	log       *zap.Logger
}

// NewUpdater returns an Updater.
func NewUpdater(logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{log: logger.Named("updater")}
}

// Update writes the instance's values over the stored ones. Every predicate
// present on the instance replaces the stored values in scope, predicates the
// instance does not carry are left alone, and the instance's types are
// re-asserted. The re-read instance is returned.
func (u *Updater) Update(ctx context.Context, conn store.Connection, class schemas.EntityType, inst *schemas.Instance, contexts schemas.ContextSet) (*schemas.Instance, error) {
	if inst == nil {
		return nil, ErrNilInstance
	}
	if inst.IRI == "" {
		return nil, ErrEmptyIRI
	}

	var additions []schemas.Statement
	types := append([]schemas.IRI{}, inst.Types...)
	if class.IRI != "" && !inst.HasType(class.IRI) {
		types = append(types, class.IRI)
	}
	for _, t := range types {
		additions = append(additions, typeStatement(inst.IRI, t))
	}

	for _, p := range inst.Predicates() {
		if p == schemas.RDFType {
			continue
		}
		if _, err := conn.Remove(ctx, schemas.Pattern{Subject: inst.IRI, Predicate: p}, contexts); err != nil {
			return nil, fmt.Errorf("failed to clear %s on %s: %w", p, inst.IRI, err)
		}
		for _, v := range inst.Properties[p] {
			additions = append(additions, schemas.Statement{Subject: inst.IRI, Predicate: p, Object: v})
		}
	}

	if err := conn.Add(ctx, contexts, additions...); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", inst.IRI, err)
	}
	u.log.Debug("Instance updated", zap.String("iri", string(inst.IRI)), zap.Int("statements", len(additions)))

	return u.Retriever.Retrieve(ctx, conn, class, inst.IRI, contexts)
}

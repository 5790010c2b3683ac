package operations

import (
	"context"
	"fmt"
	"sort"

	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/store"
)

// Retriever rebuilds instances from their statements.
type Retriever struct{}

// Retrieve returns the instance at iri, or nil when no member of class with
// that IRI is visible in the contexts.
func (Retriever) Retrieve(ctx context.Context, conn store.Connection, class schemas.EntityType, iri schemas.IRI, contexts schemas.ContextSet) (*schemas.Instance, error) {
	if iri == "" {
		return nil, ErrEmptyIRI
	}
	sts, err := conn.Statements(ctx, schemas.Pattern{Subject: iri}, contexts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", iri, err)
	}
	inst := assemble(iri, sts)
	if class.IRI != "" && !inst.HasType(class.IRI) {
		return nil, nil
	}
	if class.IRI == "" && len(sts) == 0 {
		return nil, nil
	}
	return inst, nil
}

// RetrieveAll returns every member of class visible in the contexts, ordered
// by IRI. The result is never nil.
func (r Retriever) RetrieveAll(ctx context.Context, conn store.Connection, class schemas.EntityType, contexts schemas.ContextSet) ([]*schemas.Instance, error) {
	typed, err := conn.Statements(ctx, schemas.Pattern{
		Predicate: schemas.RDFType,
		Object:    schemas.NewIRITerm(class.IRI),
	}, contexts)
	if err != nil {
		return []*schemas.Instance{}, fmt.Errorf("failed to list members of %s: %w", class, err)
	}

	seen := make(map[schemas.IRI]struct{}, len(typed))
	subjects := make([]schemas.IRI, 0, len(typed))
	for _, st := range typed {
		if _, ok := seen[st.Subject]; ok {
			continue
		}
		seen[st.Subject] = struct{}{}
		subjects = append(subjects, st.Subject)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })

	out := make([]*schemas.Instance, 0, len(subjects))
	for _, s := range subjects {
		inst, err := r.Retrieve(ctx, conn, class, s, contexts)
		if err != nil {
			return []*schemas.Instance{}, err
		}
		if inst != nil {
			out = append(out, inst)
		}
	}
	return out, nil
}

// assemble folds statements about one subject into an instance. A value held
// in several graphs appears once.
func assemble(iri schemas.IRI, sts []schemas.Statement) *schemas.Instance {
	inst := &schemas.Instance{IRI: iri, Properties: make(map[schemas.IRI][]schemas.Term)}
	seen := make(map[schemas.IRI]map[schemas.Term]struct{})
	for _, st := range sts {
		if st.Predicate == schemas.RDFType {
			if class, ok := st.Object.IRI(); ok && !inst.HasType(class) {
				inst.Types = append(inst.Types, class)
			}
			continue
		}
		if seen[st.Predicate] == nil {
			seen[st.Predicate] = make(map[schemas.Term]struct{})
		}
		if _, dup := seen[st.Predicate][st.Object]; dup {
			continue
		}
		seen[st.Predicate][st.Object] = struct{}{}
		inst.Properties[st.Predicate] = append(inst.Properties[st.Predicate], st.Object)
	}
	return inst
}

// Package operations holds the statement-level helpers behind the access
// object: creating, retrieving, updating and removing instances of one class
// over an open store connection. Helpers never manage transactions; the
// caller's session decides when work is committed.
package operations

import (
	"errors"

	"github.com/xkilldash9x/kao/api/schemas"
)

var (
	// ErrEmptyIRI is returned when an instance would be addressed by a blank IRI.
	ErrEmptyIRI = errors.New("instance IRI is empty")
	// ErrNilInstance is returned when an update is given no instance.
	ErrNilInstance = errors.New("instance is nil")
	// ErrUniqueIDExhausted is returned when every generated identifier collided.
	ErrUniqueIDExhausted = errors.New("could not generate a unique identifier")
)

// typeStatement asserts that iri is an instance of class.
func typeStatement(iri, class schemas.IRI) schemas.Statement {
	return schemas.Statement{
		Subject:   iri,
		Predicate: schemas.RDFType,
		Object:    schemas.NewIRITerm(class),
	}
}

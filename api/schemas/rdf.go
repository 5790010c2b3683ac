package schemas

import (
	"strconv"
	"strings"
)

// IRI is an opaque resource identifier. Named graphs, predicates, entity types
// and instance identifiers all share this representation.
type IRI string

// -- Canonical RDF Data Model --

// RDFType is the predicate linking an instance to its entity type.
const RDFType IRI = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// XSDString is the implicit datatype of plain literals.
const XSDString IRI = "http://www.w3.org/2001/XMLSchema#string"

// TermKind distinguishes the three shapes an RDF object can take.
type TermKind string

const (
	TermIRI     TermKind = "iri"
	TermLiteral TermKind = "literal"
	TermBlank   TermKind = "bnode"
)

// Term is an RDF node in object position. The zero Term matches anything when
// used inside a Pattern.
type Term struct {
	Kind     TermKind `json:"kind"`
	Value    string   `json:"value"`
	Datatype IRI      `json:"datatype,omitempty"`
	Lang     string   `json:"lang,omitempty"`
}

// NewIRITerm wraps an IRI as an object term.
func NewIRITerm(iri IRI) Term {
	return Term{Kind: TermIRI, Value: string(iri)}
}

// NewLiteral builds a plain string literal.
func NewLiteral(value string) Term {
	return Term{Kind: TermLiteral, Value: value}
}

// NewTypedLiteral builds a literal with an explicit datatype.
func NewTypedLiteral(value string, datatype IRI) Term {
	if datatype == XSDString {
		datatype = ""
	}
	return Term{Kind: TermLiteral, Value: value, Datatype: datatype}
}

// NewLangLiteral builds a language-tagged literal.
func NewLangLiteral(value, lang string) Term {
	return Term{Kind: TermLiteral, Value: value, Lang: strings.ToLower(lang)}
}

// NewBlankNode builds a blank node term with the given label.
func NewBlankNode(label string) Term {
	return Term{Kind: TermBlank, Value: label}
}

// IsZero reports whether the term is the wildcard value.
func (t Term) IsZero() bool {
	return t.Kind == "" && t.Value == "" && t.Datatype == "" && t.Lang == ""
}

// IRI returns the term as an IRI and whether it is one.
func (t Term) IRI() (IRI, bool) {
	if t.Kind != TermIRI {
		return "", false
	}
	return IRI(t.Value), true
}

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case TermIRI:
		return "<" + t.Value + ">"
	case TermBlank:
		return "_:" + t.Value
	case TermLiteral:
		s := strconv.Quote(t.Value)
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" {
			return s + "^^<" + string(t.Datatype) + ">"
		}
		return s
	default:
		return ""
	}
}

// Statement is a subject-predicate-object fact located in a named graph.
// An empty Context is the default graph.
type Statement struct {
	Subject   IRI  `json:"subject"`
	Predicate IRI  `json:"predicate"`
	Object    Term `json:"object"`
	Context   IRI  `json:"context,omitempty"`
}

// Pattern selects statements. Empty fields are wildcards.
type Pattern struct {
	Subject   IRI
	Predicate IRI
	Object    Term
}

// Matches reports whether the statement satisfies every bound field.
func (p Pattern) Matches(s Statement) bool {
	if p.Subject != "" && p.Subject != s.Subject {
		return false
	}
	if p.Predicate != "" && p.Predicate != s.Predicate {
		return false
	}
	if !p.Object.IsZero() && p.Object != s.Object {
		return false
	}
	return true
}

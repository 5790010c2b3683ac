package sparql

import (
	"errors"
	"fmt"
	"io"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/kao/api/schemas"
)

// MediaTypeResultsJSON is the SPARQL 1.1 query results JSON format.
const MediaTypeResultsJSON = "application/sparql-results+json"

const decodeBufferSize = 4096

// bindingTerm is one RDF term in the results JSON format.
type bindingTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang"`
	Datatype string `json:"datatype"`
}

func (b bindingTerm) term() (schemas.Term, error) {
	switch b.Type {
	case "uri":
		return schemas.NewIRITerm(schemas.IRI(b.Value)), nil
	case "literal", "typed-literal":
		if b.Lang != "" {
			return schemas.NewLangLiteral(b.Value, b.Lang), nil
		}
		return schemas.NewTypedLiteral(b.Value, schemas.IRI(b.Datatype)), nil
	case "bnode":
		return schemas.NewBlankNode(b.Value), nil
	default:
		return schemas.Term{}, fmt.Errorf("unknown term type %q", b.Type)
	}
}

// streamResults decodes bindings one at a time straight off the response body.
type streamResults struct {
	body    io.ReadCloser
	iter    *json.Iterator
	current Solution
	started bool
	done    bool
	closed  bool
	err     error
}

var _ Results = (*streamResults)(nil)

// newStreamResults positions a decoder at the start of results.bindings. A
// document without bindings yields no solutions.
func newStreamResults(body io.ReadCloser) *streamResults {
	s := &streamResults{
		body: body,
		iter: json.Parse(json.ConfigCompatibleWithStandardLibrary, body, decodeBufferSize),
	}
	if !s.seekBindings() {
		s.done = true
	}
	return s
}

func (s *streamResults) seekBindings() bool {
	for field := s.iter.ReadObject(); field != ""; field = s.iter.ReadObject() {
		if field != "results" {
			s.iter.Skip()
			continue
		}
		for inner := s.iter.ReadObject(); inner != ""; inner = s.iter.ReadObject() {
			if inner == "bindings" {
				return s.iter.WhatIsNext() == json.ArrayValue || s.fail(errors.New("results.bindings is not an array"))
			}
			s.iter.Skip()
		}
	}
	return s.fail(nil)
}

// fail records err, or the decoder's own error when err is nil. A document
// that ends early surfaces as io.EOF.
func (s *streamResults) fail(err error) bool {
	if err == nil {
		err = s.iter.Error
	}
	if err != nil && s.err == nil {
		s.err = fmt.Errorf("failed to decode query results: %w", err)
	}
	return false
}

func (s *streamResults) Next() bool {
	if s.done || s.closed {
		return false
	}
	s.started = true
	if !s.iter.ReadArray() {
		s.done = true
		s.current = nil
		return s.fail(nil)
	}

	var raw map[string]bindingTerm
	s.iter.ReadVal(&raw)
	if s.iter.Error != nil {
		s.done = true
		s.current = nil
		return s.fail(s.iter.Error)
	}

	sol := make(Solution, len(raw))
	for name, b := range raw {
		t, err := b.term()
		if err != nil {
			s.done = true
			s.current = nil
			return s.fail(fmt.Errorf("variable %s: %w", name, err))
		}
		sol[name] = t
	}
	s.current = sol
	return true
}

func (s *streamResults) Solution() Solution { return s.current }
func (s *streamResults) Err() error         { return s.err }

func (s *streamResults) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// decodeBoolean reads the answer of an ASK query.
func decodeBoolean(r io.Reader) (bool, error) {
	var doc struct {
		Boolean *bool `json:"boolean"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return false, fmt.Errorf("failed to decode boolean result: %w", err)
	}
	if doc.Boolean == nil {
		return false, errors.New("response carries no boolean result")
	}
	return *doc.Boolean, nil
}

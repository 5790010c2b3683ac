package schemas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/kao/api/schemas"
)

func TestTerm_String(t *testing.T) {
	tests := []struct {
		name string
		term schemas.Term
		want string
	}{
		{"iri", schemas.NewIRITerm("http://ex.org/a"), "<http://ex.org/a>"},
		{"plain literal", schemas.NewLiteral("Bob"), `"Bob"`},
		{"lang literal", schemas.NewLangLiteral("Bob", "EN"), `"Bob"@en`},
		{"typed literal", schemas.NewTypedLiteral("42", "http://www.w3.org/2001/XMLSchema#integer"), `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`},
		{"xsd string collapses", schemas.NewTypedLiteral("x", schemas.XSDString), `"x"`},
		{"blank", schemas.NewBlankNode("b0"), "_:b0"},
		{"zero", schemas.Term{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.term.String())
		})
	}
}

func TestPattern_Matches(t *testing.T) {
	st := schemas.Statement{
		Subject:   "http://ex.org/Bob",
		Predicate: schemas.RDFType,
		Object:    schemas.NewIRITerm("http://ex.org/Person"),
		Context:   "http://ex.org/g1",
	}

	assert.True(t, schemas.Pattern{}.Matches(st), "empty pattern is a full wildcard")
	assert.True(t, schemas.Pattern{Subject: "http://ex.org/Bob"}.Matches(st))
	assert.True(t, schemas.Pattern{Predicate: schemas.RDFType, Object: schemas.NewIRITerm("http://ex.org/Person")}.Matches(st))
	assert.False(t, schemas.Pattern{Subject: "http://ex.org/Alice"}.Matches(st))
	assert.False(t, schemas.Pattern{Object: schemas.NewLiteral("http://ex.org/Person")}.Matches(st), "kind is part of identity")
}

func TestInstance_Properties(t *testing.T) {
	class := schemas.EntityType{IRI: "http://ex.org/Person"}
	inst := schemas.NewInstance("http://ex.org/Bob", class)

	assert.Equal(t, "http://ex.org/Bob", inst.String())
	assert.True(t, inst.HasType(class.IRI))

	inst.Set("http://ex.org/name", schemas.NewLiteral("Bob"))
	inst.Add("http://ex.org/name", schemas.NewLiteral("Robert"))
	inst.Set("http://ex.org/age", schemas.NewLiteral("42"))

	assert.Len(t, inst.Get("http://ex.org/name"), 2)
	first, ok := inst.First("http://ex.org/name")
	assert.True(t, ok)
	assert.Equal(t, "Bob", first.Value)
	assert.Equal(t, []schemas.IRI{"http://ex.org/age", "http://ex.org/name"}, inst.Predicates())

	var nilInst *schemas.Instance
	assert.Equal(t, "", nilInst.String())
}

package schemas

import "sort"

// EntityType describes the class an access object is bound to.
type EntityType struct {
	IRI   IRI    `json:"iri"`
	Label string `json:"label,omitempty"`
}

// String returns the class IRI.
func (e EntityType) String() string { return string(e.IRI) }

// Instance is a materialized member of an entity type. A value held by a
// caller is detached: changes reach the store only through an explicit update.
type Instance struct {
	IRI        IRI            `json:"iri"`
	Types      []IRI          `json:"types"`
	Properties map[IRI][]Term `json:"properties"`
}

// NewInstance creates an empty detached instance of the given type.
func NewInstance(iri IRI, class EntityType) *Instance {
	inst := &Instance{IRI: iri, Properties: make(map[IRI][]Term)}
	if class.IRI != "" {
		inst.Types = []IRI{class.IRI}
	}
	return inst
}

// String returns the instance IRI.
func (i *Instance) String() string {
	if i == nil {
		return ""
	}
	return string(i.IRI)
}

// HasType reports whether the instance carries the given rdf:type.
func (i *Instance) HasType(class IRI) bool {
	for _, t := range i.Types {
		if t == class {
			return true
		}
	}
	return false
}

// Set replaces the values of a property. Passing no values clears it on the
// next update.
func (i *Instance) Set(predicate IRI, values ...Term) {
	if i.Properties == nil {
		i.Properties = make(map[IRI][]Term)
	}
	i.Properties[predicate] = append([]Term{}, values...)
}

// Add appends values to a property.
func (i *Instance) Add(predicate IRI, values ...Term) {
	if i.Properties == nil {
		i.Properties = make(map[IRI][]Term)
	}
	i.Properties[predicate] = append(i.Properties[predicate], values...)
}

// Get returns the values of a property.
func (i *Instance) Get(predicate IRI) []Term {
	return i.Properties[predicate]
}

// First returns the first value of a property, if any.
func (i *Instance) First(predicate IRI) (Term, bool) {
	vals := i.Properties[predicate]
	if len(vals) == 0 {
		return Term{}, false
	}
	return vals[0], true
}

// Predicates returns the property keys in lexical order.
func (i *Instance) Predicates() []IRI {
	keys := make([]IRI, 0, len(i.Properties))
	for k := range i.Properties {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
	return keys
}

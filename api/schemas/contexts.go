package schemas

// ContextSet is an ordered, duplicate-free collection of named graph
// identifiers. The zero value is the empty set and every method treats it as
// such, so a ContextSet is never in an undefined state. Values are immutable:
// operations return new sets.
type ContextSet struct {
	ids []IRI
}

// EmptyContexts returns the empty set.
func EmptyContexts() ContextSet {
	return ContextSet{}
}

// NewContextSet builds a set from the given identifiers, keeping the first
// occurrence of each and dropping blanks. A nil or empty input yields the
// empty set.
func NewContextSet(ids ...IRI) ContextSet {
	if len(ids) == 0 {
		return ContextSet{}
	}
	seen := make(map[IRI]struct{}, len(ids))
	out := make([]IRI, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return ContextSet{}
	}
	return ContextSet{ids: out}
}

// ContextsFromStrings is NewContextSet for raw string identifiers, as they
// arrive from configuration.
func ContextsFromStrings(ids []string) ContextSet {
	iris := make([]IRI, len(ids))
	for i, id := range ids {
		iris[i] = IRI(id)
	}
	return NewContextSet(iris...)
}

// MergeContexts returns the union of a and b. Members of a come first, in
// their original order, followed by the members of b not already present.
func MergeContexts(a, b ContextSet) ContextSet {
	if b.IsEmpty() {
		return a
	}
	if a.IsEmpty() {
		return b
	}
	all := make([]IRI, 0, len(a.ids)+len(b.ids))
	all = append(all, a.ids...)
	all = append(all, b.ids...)
	return NewContextSet(all...)
}

// Merge is MergeContexts(c, other).
func (c ContextSet) Merge(other ContextSet) ContextSet {
	return MergeContexts(c, other)
}

// Len returns the number of identifiers.
func (c ContextSet) Len() int { return len(c.ids) }

// IsEmpty reports whether the set has no members.
func (c ContextSet) IsEmpty() bool { return len(c.ids) == 0 }

// Contains reports membership.
func (c ContextSet) Contains(id IRI) bool {
	for _, x := range c.ids {
		if x == id {
			return true
		}
	}
	return false
}

// IRIs returns a copy of the members in order. Never nil.
func (c ContextSet) IRIs() []IRI {
	out := make([]IRI, len(c.ids))
	copy(out, c.ids)
	return out
}

// Strings returns the members as plain strings, in order. Never nil.
func (c ContextSet) Strings() []string {
	out := make([]string, len(c.ids))
	for i, id := range c.ids {
		out[i] = string(id)
	}
	return out
}

// Equal reports whether both sets hold the same members, ignoring order.
func (c ContextSet) Equal(other ContextSet) bool {
	if len(c.ids) != len(other.ids) {
		return false
	}
	for _, id := range c.ids {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

package kao

import (
	"regexp"

	"github.com/xkilldash9x/kao/api/schemas"
)

// fromClause matches FROM <iri> and FROM NAMED <iri> in any case. The keyword
// must open the query or follow whitespace or a closing brace.
var fromClause = regexp.MustCompile(`(?i)(?:^|[\s}])FROM\s*(?:NAMED\s*)?<([^<>\s]*)>`)

// ExtractContexts returns the graphs a query names in its dataset clauses, in
// order of first appearance. It is a text scan, not a parser: malformed
// queries yield fewer graphs, never an error.
func ExtractContexts(query string) schemas.ContextSet {
	matches := fromClause.FindAllStringSubmatch(query, -1)
	if len(matches) == 0 {
		return schemas.EmptyContexts()
	}
	ids := make([]schemas.IRI, 0, len(matches))
	for _, m := range matches {
		if m[1] != "" {
			ids = append(ids, schemas.IRI(m[1]))
		}
	}
	return schemas.NewContextSet(ids...)
}

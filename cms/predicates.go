package cms

import (
	"strconv"
	"strings"
)

// Predicate is a single query condition in the API's query language,
// e.g. [at(document.type,"posts")].
type Predicate string

// At matches documents whose field at path equals value.
func At(path, value string) Predicate {
	return Predicate("[at(" + path + "," + strconv.Quote(value) + ")]")
}

// Not matches documents whose field at path differs from value.
func Not(path, value string) Predicate {
	return Predicate("[not(" + path + "," + strconv.Quote(value) + ")]")
}

// Any matches documents whose field at path equals one of values.
func Any(path string, values ...string) Predicate {
	return Predicate("[any(" + path + "," + quoteList(values) + ")]")
}

// InIDs matches documents with one of the given ids.
func InIDs(ids ...string) Predicate {
	return Predicate("[in(document.id," + quoteList(ids) + ")]")
}

// DocumentType is shorthand for At("document.type", typ).
func DocumentType(typ string) Predicate {
	return At("document.type", typ)
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

// encodeQuery joins predicates into the q parameter value.
func encodeQuery(predicates []Predicate) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, p := range predicates {
		b.WriteString(string(p))
	}
	b.WriteByte(']')
	return b.String()
}

// Ordering sorts results by a field, e.g. document.first_publication_date.
type Ordering struct {
	Field string
	Desc  bool
}

func encodeOrderings(orderings []Ordering) string {
	parts := make([]string, len(orderings))
	for i, o := range orderings {
		parts[i] = o.Field
		if o.Desc {
			parts[i] += " desc"
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

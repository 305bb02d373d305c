package cms

import (
	"strconv"
	"strings"
)

// Predicate is a single query condition in the backend's bracket syntax.
type Predicate string

// At matches documents whose path equals value, e.g. At("document.type", "posts").
func At(path, value string) Predicate {
	return Predicate("[at(" + path + ", " + strconv.Quote(value) + ")]")
}

// UIDPath returns the predicate path of a custom type's UID field.
func UIDPath(docType string) string {
	return "my." + docType + ".uid"
}

func encodeQuery(predicates []Predicate) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, p := range predicates {
		b.WriteString(string(p))
	}
	b.WriteByte(']')
	return b.String()
}

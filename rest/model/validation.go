package model

import (
	"fmt"
	"sort"
	"strings"
)

// StructureKey collects errors that concern the whole document rather
// than one field.
const StructureKey = "structure"

// ValidationErrors maps field names to the problems found with them. An
// empty map means the record is valid.
type ValidationErrors map[string][]string

// Add records a message for a field. An empty field name is treated as
// a document level error.
func (v ValidationErrors) Add(field, msg string) {
	if field == "" {
		field = StructureKey
	}
	v[field] = append(v[field], msg)
}

// Extend adds every message of other.
func (v ValidationErrors) Extend(other ValidationErrors) {
	for _, field := range other.Fields() {
		for _, msg := range other[field] {
			v.Add(field, msg)
		}
	}
}

func (v ValidationErrors) HasErrors() bool { return len(v) > 0 }

// Fields returns the names of the fields with errors in sorted order.
func (v ValidationErrors) Fields() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Error lets models report field level problems from a Validate method.
func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, field := range v.Fields() {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(v[field], "; ")))
	}
	return strings.Join(parts, ", ")
}

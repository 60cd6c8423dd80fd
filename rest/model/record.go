package model

import (
	"github.com/evergreen-ci/slither/db"
	"go.mongodb.org/mongo-driver/bson"
)

// Record is a stored document as seen by API clients: JSON compatible
// values keyed by field name, with the storage identifier exposed as a
// string under "id".
type Record map[string]any

// ID returns the public identifier of the record.
func (r Record) ID() string {
	id, _ := r[db.PublicIdKey].(string)
	return id
}

// Copy returns a shallow copy of the record.
func (r Record) Copy() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// NewRecord builds a record from a stored document.
func NewRecord(doc bson.M) Record {
	if doc == nil {
		return nil
	}
	return Record(db.PublicRecord(doc))
}

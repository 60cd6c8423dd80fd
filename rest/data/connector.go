package data

import (
	"context"

	"github.com/evergreen-ci/slither/rest/model"
	"go.mongodb.org/mongo-driver/bson"
)

// FindOptions describes a collection query.
type FindOptions struct {
	Filter     bson.M
	Projection bson.M
	Sort       bson.D
	Limit      int64
	Skip       int64
}

// Connector translates record operations into storage calls. Returned
// records never carry storage types and expose their identifier as a
// string "id" field.
type Connector interface {
	// FindOne returns the first record matching the filter, or nil if
	// there is none.
	FindOne(context.Context, string, bson.M, bson.M) (model.Record, error)
	// Find returns the records matching the options.
	Find(context.Context, string, FindOptions) ([]model.Record, error)
	// Create stores a new record without its null fields and returns
	// the generated id.
	Create(context.Context, string, bson.M) (string, error)
	// Update writes changes to the record with the given id and
	// returns the stored result. A full replacement removes fields of
	// the stored record that the changes do not carry.
	Update(ctx context.Context, collection, id string, changes bson.M, fullReplace bool) (model.Record, error)
	// Delete removes the record with the given id.
	Delete(context.Context, string, string) error
}

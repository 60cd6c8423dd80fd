package data

import (
	"context"
	"sort"
	"sync"

	"github.com/evergreen-ci/slither/db"
	"github.com/evergreen-ci/slither/rest/model"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockConnector is a Connector that keeps collections in memory. It
// understands the subset of the query language the resource handlers
// produce: equality, $and, $or, $in, $nin, $ne, $exists and $eq.
type MockConnector struct {
	// StoredError, when set, is returned by every operation.
	StoredError error

	mu          sync.RWMutex
	collections map[string][]bson.M
}

// NewMockConnector returns an empty in-memory connector.
func NewMockConnector() *MockConnector {
	return &MockConnector{collections: map[string][]bson.M{}}
}

// Insert stores documents as they are, generating ids for documents
// that have none. It returns the ids of the stored documents.
func (mc *MockConnector) Insert(collection string, docs ...bson.M) []string {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		doc = copyDocument(doc)
		if _, ok := doc[db.IdKey]; !ok {
			doc[db.IdKey] = primitive.NewObjectID()
		}
		mc.collection(collection)
		mc.collections[collection] = append(mc.collections[collection], doc)
		if oid, ok := doc[db.IdKey].(primitive.ObjectID); ok {
			ids = append(ids, oid.Hex())
		}
	}
	return ids
}

// Documents returns copies of the stored documents of a collection.
func (mc *MockConnector) Documents(collection string) []bson.M {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make([]bson.M, 0, len(mc.collections[collection]))
	for _, doc := range mc.collections[collection] {
		out = append(out, copyDocument(doc))
	}
	return out
}

func (mc *MockConnector) collection(name string) []bson.M {
	if mc.collections == nil {
		mc.collections = map[string][]bson.M{}
	}
	return mc.collections[name]
}

func (mc *MockConnector) FindOne(ctx context.Context, collection string, filter, projection bson.M) (model.Record, error) {
	if mc.StoredError != nil {
		return nil, mc.StoredError
	}

	mc.mu.RLock()
	defer mc.mu.RUnlock()

	for _, doc := range mc.collection(collection) {
		if matches(doc, filter) {
			return model.NewRecord(project(doc, projection)), nil
		}
	}
	return nil, nil
}

func (mc *MockConnector) Find(ctx context.Context, collection string, opts FindOptions) ([]model.Record, error) {
	if mc.StoredError != nil {
		return nil, mc.StoredError
	}

	mc.mu.RLock()
	defer mc.mu.RUnlock()

	found := []bson.M{}
	for _, doc := range mc.collection(collection) {
		if matches(doc, opts.Filter) {
			found = append(found, doc)
		}
	}

	if len(opts.Sort) > 0 {
		sort.SliceStable(found, func(i, j int) bool {
			for _, e := range opts.Sort {
				dir, _ := e.Value.(int)
				cmp := compareValues(lookup(found[i], e.Key), lookup(found[j], e.Key))
				if cmp != 0 {
					return (cmp < 0) == (dir >= 0)
				}
			}
			return false
		})
	}

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(found)) {
			found = nil
		} else {
			found = found[opts.Skip:]
		}
	}
	if opts.Limit > 0 && int64(len(found)) > opts.Limit {
		found = found[:opts.Limit]
	}

	out := make([]model.Record, 0, len(found))
	for _, doc := range found {
		out = append(out, model.NewRecord(project(doc, opts.Projection)))
	}
	return out, nil
}

func (mc *MockConnector) Create(ctx context.Context, collection string, doc bson.M) (string, error) {
	if mc.StoredError != nil {
		return "", mc.StoredError
	}

	doc = db.Clean(doc)
	delete(doc, db.IdKey)
	oid := primitive.NewObjectID()
	doc[db.IdKey] = oid

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.collection(collection)
	mc.collections[collection] = append(mc.collections[collection], doc)

	return oid.Hex(), nil
}

func (mc *MockConnector) Update(ctx context.Context, collection, id string, changes bson.M, fullReplace bool) (model.Record, error) {
	if mc.StoredError != nil {
		return nil, mc.StoredError
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, db.ErrNotFound
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	docs := mc.collection(collection)
	for idx, doc := range docs {
		if doc[db.IdKey] != oid {
			continue
		}

		update := db.UpdateDocument(changes, doc, fullReplace)
		next := copyDocument(doc)
		if set, ok := update["$set"].(bson.M); ok {
			for k, v := range set {
				next[k] = v
			}
		}
		if unset, ok := update["$unset"].(bson.M); ok {
			for k := range unset {
				delete(next, k)
			}
		}
		docs[idx] = next

		return model.NewRecord(next), nil
	}

	return nil, db.ErrNotFound
}

func (mc *MockConnector) Delete(ctx context.Context, collection, id string) error {
	if mc.StoredError != nil {
		return mc.StoredError
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return db.ErrNotFound
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	docs := mc.collection(collection)
	for idx, doc := range docs {
		if doc[db.IdKey] == oid {
			mc.collections[collection] = append(docs[:idx:idx], docs[idx+1:]...)
			return nil
		}
	}

	return errors.WithStack(db.ErrNotFound)
}

func copyDocument(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

package data

import (
	"context"

	"github.com/evergreen-ci/slither/db"
	"github.com/evergreen-ci/slither/rest/model"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DBConnector is a Connector that stores records in a MongoDB
// database.
type DBConnector struct {
	DB *mongo.Database
}

// NewDBConnector returns a connector backed by the given database.
func NewDBConnector(database *mongo.Database) *DBConnector {
	return &DBConnector{DB: database}
}

func startSpan(ctx context.Context, name, collection string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(collectionAttribute, collection))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (c *DBConnector) FindOne(ctx context.Context, collection string, filter, projection bson.M) (model.Record, error) {
	ctx, span := startSpan(ctx, "FindOne", collection)
	defer span.End()

	opts := options.FindOne()
	if len(projection) > 0 {
		opts.SetProjection(projection)
	}

	doc := bson.M{}
	err := c.DB.Collection(collection).FindOne(ctx, nonNil(filter), opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "finding record in '%s'", collection)
	}

	return model.NewRecord(doc), nil
}

func (c *DBConnector) Find(ctx context.Context, collection string, opts FindOptions) ([]model.Record, error) {
	ctx, span := startSpan(ctx, "Find", collection)
	defer span.End()

	findOpts := options.Find()
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}

	cursor, err := c.DB.Collection(collection).Find(ctx, nonNil(opts.Filter), findOpts)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "querying '%s'", collection)
	}

	docs := []bson.M{}
	if err = cursor.All(ctx, &docs); err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "reading results from '%s'", collection)
	}

	out := make([]model.Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, model.NewRecord(doc))
	}
	span.SetAttributes(attribute.Int(resultCountAttribute, len(out)))

	return out, nil
}

func (c *DBConnector) Create(ctx context.Context, collection string, doc bson.M) (string, error) {
	ctx, span := startSpan(ctx, "Create", collection)
	defer span.End()

	doc = db.Clean(doc)
	delete(doc, db.IdKey)

	res, err := c.DB.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		span.RecordError(err)
		return "", errors.Wrapf(err, "inserting record into '%s'", collection)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.Errorf("unexpected id type %T for new record in '%s'", res.InsertedID, collection)
	}
	span.SetAttributes(attribute.String(recordIdAttribute, oid.Hex()))

	grip.Debug(message.Fields{
		"message":    "created record",
		"collection": collection,
		"id":         oid.Hex(),
	})

	return oid.Hex(), nil
}

func (c *DBConnector) Update(ctx context.Context, collection, id string, changes bson.M, fullReplace bool) (model.Record, error) {
	ctx, span := startSpan(ctx, "Update", collection,
		attribute.String(recordIdAttribute, id),
		attribute.Bool(fullReplaceAttribute, fullReplace))
	defer span.End()

	filter, err := db.IDFilter(id)
	if err != nil {
		return nil, db.ErrNotFound
	}
	coll := c.DB.Collection(collection)

	var previous bson.M
	if fullReplace {
		previous = bson.M{}
		err = coll.FindOne(ctx, filter).Decode(&previous)
		if err == mongo.ErrNoDocuments {
			return nil, db.ErrNotFound
		}
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrapf(err, "reading record '%s' from '%s'", id, collection)
		}
	}

	update := db.UpdateDocument(changes, previous, fullReplace)
	if len(update) > 0 {
		res, err := coll.UpdateOne(ctx, filter, update)
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrapf(err, "updating record '%s' in '%s'", id, collection)
		}
		if res.MatchedCount == 0 {
			return nil, db.ErrNotFound
		}
	}

	rec, err := c.FindOne(ctx, collection, filter, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if rec == nil {
		return nil, db.ErrNotFound
	}
	return rec, nil
}

func (c *DBConnector) Delete(ctx context.Context, collection, id string) error {
	ctx, span := startSpan(ctx, "Delete", collection, attribute.String(recordIdAttribute, id))
	defer span.End()

	filter, err := db.IDFilter(id)
	if err != nil {
		return db.ErrNotFound
	}

	res, err := c.DB.Collection(collection).DeleteOne(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "deleting record '%s' from '%s'", id, collection)
	}
	if res.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func nonNil(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}

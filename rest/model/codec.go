package model

import (
	"bytes"

	"github.com/evergreen-ci/slither/db"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// DecodeDocument parses a JSON object. Extended JSON wrappers such as
// {"$oid": ...} and {"$date": ...} are converted into storage types. An
// empty input decodes to an empty document.
func DecodeDocument(data []byte) (bson.M, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return bson.M{}, nil
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding JSON document")
	}

	return toDocument(doc), nil
}

// DecodeSort parses a JSON object mapping field names to true for
// ascending or false for descending order. Field order is preserved.
func DecodeSort(data []byte) ([]db.SortField, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding sort document")
	}

	out := make([]db.SortField, 0, len(doc))
	for _, e := range doc {
		asc, ok := e.Value.(bool)
		if !ok {
			return nil, errors.Errorf("sort direction of '%s' must be true or false", e.Key)
		}
		out = append(out, db.SortField{Key: e.Key, Ascending: asc})
	}
	return out, nil
}

func toDocument(d bson.D) bson.M {
	out := make(bson.M, len(d))
	for _, e := range d {
		out[e.Key] = toValue(e.Value)
	}
	return out
}

func toValue(v any) any {
	switch val := v.(type) {
	case bson.D:
		return toDocument(val)
	case bson.M:
		out := make(bson.M, len(val))
		for k, nested := range val {
			out[k] = toValue(nested)
		}
		return out
	case bson.A:
		out := make(bson.A, len(val))
		for idx := range val {
			out[idx] = toValue(val[idx])
		}
		return out
	default:
		return v
	}
}

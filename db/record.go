package db

import (
	"encoding/hex"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	IdKey       = "_id"
	PublicIdKey = "id"
)

// Clean returns a copy of the document without null fields. Nested
// documents are cleaned as well; arrays are left untouched.
func Clean(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		if v == nil {
			continue
		}
		if nested, ok := asDocument(v); ok {
			v = Clean(nested)
		}
		out[k] = v
	}
	return out
}

// Normalize converts storage native values into plain JSON
// compatible ones.
func Normalize(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case *primitive.ObjectID:
		if val == nil {
			return nil
		}
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case time.Time:
		return val.UTC()
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC()
	case primitive.Decimal128:
		return val.String()
	case primitive.Regex:
		return val.String()
	case primitive.Binary:
		if val.Subtype == 0x03 || val.Subtype == 0x04 {
			return hex.EncodeToString(val.Data)
		}
		return val.Data
	case primitive.Null, primitive.Undefined:
		return nil
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = Normalize(e.Value)
		}
		return out
	case bson.M:
		return normalizeMap(val)
	case map[string]any:
		return normalizeMap(val)
	case bson.A:
		return normalizeSlice(val)
	case []any:
		return normalizeSlice(val)
	default:
		return v
	}
}

func normalizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = Normalize(v)
	}
	return out
}

func normalizeSlice(in []any) []any {
	out := make([]any, len(in))
	for idx := range in {
		out[idx] = Normalize(in[idx])
	}
	return out
}

// PublicRecord normalizes a stored document and renames its storage
// identifier to the public id field.
func PublicRecord(doc bson.M) map[string]any {
	if doc == nil {
		return nil
	}
	out := normalizeMap(doc)
	if id, ok := out[IdKey]; ok {
		delete(out, IdKey)
		out[PublicIdKey] = id
	}
	return out
}

func asDocument(v any) (bson.M, bool) {
	switch val := v.(type) {
	case bson.M:
		return val, true
	case map[string]any:
		return bson.M(val), true
	default:
		return nil, false
	}
}

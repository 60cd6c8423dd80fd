package db

import (
	"reflect"
	"regexp"
	"sort"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	andOperator   = "$and"
	setOperator   = "$set"
	unsetOperator = "$unset"
)

var objectIDRegexp = regexp.MustCompile("^[a-f0-9]{24}$")

// IsObjectIDHex reports whether the string is the lower case hex form of
// a storage identifier.
func IsObjectIDHex(s string) bool { return objectIDRegexp.MatchString(s) }

// IDFilter builds a query matching the record with the given public id.
func IDFilter(id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid id '%s'", id)
	}
	return bson.M{IdKey: oid}, nil
}

// MergeFilters combines a query with an access limits fragment. Fields
// constrained by both are moved into a conjunction so that neither
// constraint replaces the other; other fields are unioned. A list limit
// is the set of values the field may take. Neither argument is
// modified.
func MergeFilters(query, limits bson.M) bson.M {
	out := make(bson.M, len(query)+len(limits))
	for k, v := range query {
		out[k] = v
	}

	var clauses []any
	for _, k := range sortedKeys(limits) {
		v := limits[k]
		if k != andOperator {
			v = allowedValues(v)
		}
		existing, ok := out[k]
		switch {
		case !ok:
			out[k] = v
		case k == andOperator:
			out[k] = append(asList(existing), asList(v)...)
		default:
			delete(out, k)
			clauses = append(clauses, bson.M{k: existing}, bson.M{k: v})
		}
	}

	if len(clauses) > 0 {
		if existing, ok := out[andOperator]; ok {
			clauses = append(asList(existing), clauses...)
		}
		out[andOperator] = clauses
	}

	return out
}

func allowedValues(v any) any {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Slice || val.Type().Elem().Kind() == reflect.Uint8 {
		return v
	}
	values := make([]any, val.Len())
	for idx := range values {
		values[idx] = val.Index(idx).Interface()
	}
	return bson.M{"$in": values}
}

func asList(v any) []any {
	switch val := v.(type) {
	case []any:
		return append([]any{}, val...)
	case bson.A:
		return append([]any{}, val...)
	case []bson.M:
		out := make([]any, len(val))
		for idx := range val {
			out[idx] = val[idx]
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for idx := range val {
			out[idx] = val[idx]
		}
		return out
	default:
		return []any{val}
	}
}

func sortedKeys(doc bson.M) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Projection builds a projection document. An empty result means that
// all fields are returned.
func Projection(include, exclude []string) bson.M {
	out := bson.M{}
	for _, f := range include {
		out[f] = 1
	}
	if len(out) > 0 {
		return out
	}
	for _, f := range exclude {
		out[f] = 0
	}
	return out
}

// SortField orders results by one field.
type SortField struct {
	Key       string
	Ascending bool
}

// SortDocument converts sort fields into an ordered sort document.
func SortDocument(fields []SortField) bson.D {
	if len(fields) == 0 {
		return nil
	}
	out := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := -1
		if f.Ascending {
			dir = 1
		}
		out = append(out, bson.E{Key: f.Key, Value: dir})
	}
	return out
}

// UpdateDocument builds the update for a stored record. Null fields in
// the changes are never written. A full replacement additionally
// removes every field of the previous record that the changes do not
// carry.
func UpdateDocument(changes, previous bson.M, fullReplace bool) bson.M {
	set := Clean(changes)
	delete(set, IdKey)

	update := bson.M{}
	if len(set) > 0 {
		update[setOperator] = set
	}

	if fullReplace {
		unset := bson.M{}
		for k := range previous {
			if k == IdKey {
				continue
			}
			if _, ok := set[k]; !ok {
				unset[k] = ""
			}
		}
		if len(unset) > 0 {
			update[unsetOperator] = unset
		}
	}

	return update
}

package data

import (
	"fmt"
	"strings"
	"time"

	"github.com/evergreen-ci/slither/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func matches(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$and":
			for _, sub := range asFilters(cond) {
				if !matches(doc, sub) {
					return false
				}
			}
		case "$or":
			matched := false
			for _, sub := range asFilters(cond) {
				if matches(doc, sub) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		default:
			if !matchField(doc, key, cond) {
				return false
			}
		}
	}
	return true
}

func matchField(doc bson.M, key string, cond any) bool {
	val, exists := lookupValue(doc, key)

	ops, ok := asOperators(cond)
	if !ok {
		return exists && valueMatches(val, cond)
	}

	for op, arg := range ops {
		switch op {
		case "$eq":
			if !exists || !valueMatches(val, arg) {
				return false
			}
		case "$ne":
			if exists && valueMatches(val, arg) {
				return false
			}
		case "$in":
			found := false
			for _, candidate := range asList(arg) {
				if exists && valueMatches(val, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case "$nin":
			for _, candidate := range asList(arg) {
				if exists && valueMatches(val, candidate) {
					return false
				}
			}
		case "$exists":
			want, _ := arg.(bool)
			if exists != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// valueMatches compares a stored value with a query value. Arrays match
// when any element does.
func valueMatches(stored, query any) bool {
	switch stored.(type) {
	case bson.A, []any:
		for _, elem := range asList(stored) {
			if sameKind(elem, query) && compareValues(elem, query) == 0 {
				return true
			}
		}
	}
	return sameKind(stored, query) && compareValues(stored, query) == 0
}

func asOperators(cond any) (bson.M, bool) {
	var doc bson.M
	switch val := cond.(type) {
	case bson.M:
		doc = val
	case map[string]any:
		doc = bson.M(val)
	default:
		return nil, false
	}
	if len(doc) == 0 {
		return nil, false
	}
	for k := range doc {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return doc, true
}

func asFilters(v any) []bson.M {
	out := []bson.M{}
	for _, item := range asList(v) {
		switch val := item.(type) {
		case bson.M:
			out = append(out, val)
		case map[string]any:
			out = append(out, bson.M(val))
		}
	}
	return out
}

func asList(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case bson.A:
		return val
	case []bson.M:
		out := make([]any, len(val))
		for idx := range val {
			out[idx] = val[idx]
		}
		return out
	case []string:
		out := make([]any, len(val))
		for idx := range val {
			out[idx] = val[idx]
		}
		return out
	default:
		return []any{v}
	}
}

func lookupValue(doc bson.M, key string) (any, bool) {
	var current any = doc
	for _, part := range strings.Split(key, ".") {
		var m bson.M
		switch val := current.(type) {
		case bson.M:
			m = val
		case map[string]any:
			m = bson.M(val)
		default:
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func lookup(doc bson.M, key string) any {
	val, _ := lookupValue(doc, key)
	return val
}

func project(doc bson.M, projection bson.M) bson.M {
	if len(projection) == 0 {
		return copyDocument(doc)
	}

	include := false
	for k, v := range projection {
		if k != db.IdKey && truthy(v) {
			include = true
			break
		}
	}

	out := bson.M{}
	if include {
		for k, v := range projection {
			if truthy(v) {
				if val, ok := doc[k]; ok {
					out[k] = val
				}
			}
		}
		if v, ok := projection[db.IdKey]; !ok || truthy(v) {
			out[db.IdKey] = doc[db.IdKey]
		}
		return out
	}

	out = copyDocument(doc)
	for k, v := range projection {
		if !truthy(v) {
			delete(out, k)
		}
	}
	return out
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return v != nil
	}
}

type valueKind int

const (
	kindNull valueKind = iota
	kindNumber
	kindString
	kindObjectID
	kindBool
	kindTime
	kindOther
)

func kindOf(v any) valueKind {
	switch v.(type) {
	case nil:
		return kindNull
	case int, int32, int64, float32, float64:
		return kindNumber
	case string:
		return kindString
	case primitive.ObjectID:
		return kindObjectID
	case bool:
		return kindBool
	case time.Time, primitive.DateTime:
		return kindTime
	default:
		return kindOther
	}
}

func sameKind(a, b any) bool { return kindOf(a) == kindOf(b) }

func toFloat(v any) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	default:
		return 0
	}
}

func toTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case primitive.DateTime:
		return val.Time()
	default:
		return time.Time{}
	}
}

// compareValues orders values of the same kind; values of different
// kinds are ordered by kind.
func compareValues(a, b any) int {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		if ka < kb {
			return -1
		}
		return 1
	}

	switch ka {
	case kindNull:
		return 0
	case kindNumber:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case kindString:
		return strings.Compare(a.(string), b.(string))
	case kindObjectID:
		return strings.Compare(a.(primitive.ObjectID).Hex(), b.(primitive.ObjectID).Hex())
	case kindBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case kindTime:
		return toTime(a).Compare(toTime(b))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

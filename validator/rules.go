package validator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/evergreen-ci/slither/rest/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TypeString = "string"
	TypeNumber = "number"
	TypeBool   = "bool"
	TypeObject = "object"
	TypeArray  = "array"
)

// IsKnownType reports whether FieldTypes understands the type name.
func IsKnownType(kind string) bool {
	switch kind {
	case TypeString, TypeNumber, TypeBool, TypeObject, TypeArray:
		return true
	default:
		return false
	}
}

// Rule checks one aspect of a candidate record.
type Rule func(bson.M) model.ValidationErrors

// RuleValidator runs every rule and reports all of their findings.
type RuleValidator struct {
	Rules []Rule
}

func NewRuleValidator(rules ...Rule) *RuleValidator {
	return &RuleValidator{Rules: rules}
}

func (v *RuleValidator) Validate(_ context.Context, _ string, candidate bson.M) model.ValidationErrors {
	errs := model.ValidationErrors{}
	for _, rule := range v.Rules {
		errs.Extend(rule(candidate))
	}
	return errs
}

// Required reports fields that are missing, null or blank strings.
// Nested fields may be named with dotted paths.
func Required(fields ...string) Rule {
	return func(doc bson.M) model.ValidationErrors {
		errs := model.ValidationErrors{}
		for _, field := range fields {
			value, ok := lookup(doc, field)
			if !ok || value == nil {
				errs.Add(field, fmt.Sprintf("%s is required", field))
				continue
			}
			if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
				errs.Add(field, fmt.Sprintf("%s cannot be empty", field))
			}
		}
		return errs
	}
}

// FieldTypes checks the JSON type of each named field that is present.
func FieldTypes(types map[string]string) Rule {
	fields := make([]string, 0, len(types))
	for field := range types {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	return func(doc bson.M) model.ValidationErrors {
		errs := model.ValidationErrors{}
		for _, field := range fields {
			value, ok := lookup(doc, field)
			if !ok || value == nil {
				continue
			}
			if !hasType(value, types[field]) {
				errs.Add(field, fmt.Sprintf("%s must be of type %s", field, types[field]))
			}
		}
		return errs
	}
}

func hasType(value any, kind string) bool {
	switch kind {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case int, int32, int64, float32, float64, primitive.Decimal128:
			return true
		}
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeObject:
		switch value.(type) {
		case bson.M, map[string]any, bson.D:
			return true
		}
	case TypeArray:
		switch value.(type) {
		case bson.A, []any:
			return true
		}
	}
	return false
}

func lookup(doc map[string]any, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	value, ok := doc[head]
	if !ok || !nested {
		return value, ok
	}
	switch sub := value.(type) {
	case bson.M:
		return lookup(sub, rest)
	case map[string]any:
		return lookup(sub, rest)
	default:
		return nil, false
	}
}

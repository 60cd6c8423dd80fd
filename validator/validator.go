// Package validator checks records before they are written.
package validator

import (
	"context"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/rest/model"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Validator inspects the record a write would produce. For PATCH the
// candidate is the stored record with the changes applied, so rules see
// the complete result. A nil or empty result means the write may go
// ahead.
type Validator interface {
	Validate(ctx context.Context, method string, candidate bson.M) model.ValidationErrors
}

// NoValidation accepts everything.
type NoValidation struct{}

func (NoValidation) Validate(context.Context, string, bson.M) model.ValidationErrors { return nil }

// New builds the validator described by a resource definition.
func New(conf slither.ResourceConfig) (Validator, error) {
	if len(conf.Required) == 0 && len(conf.FieldTypes) == 0 {
		return NoValidation{}, nil
	}

	catcher := grip.NewBasicCatcher()
	for field, kind := range conf.FieldTypes {
		catcher.ErrorfWhen(!IsKnownType(kind), "field '%s' has unknown type '%s'", field, kind)
	}
	if catcher.HasErrors() {
		return nil, errors.Wrapf(catcher.Resolve(), "building validator for resource '%s'", conf.Name)
	}

	rules := []Rule{}
	if len(conf.Required) > 0 {
		rules = append(rules, Required(conf.Required...))
	}
	if len(conf.FieldTypes) > 0 {
		rules = append(rules, FieldTypes(conf.FieldTypes))
	}
	return NewRuleValidator(rules...), nil
}

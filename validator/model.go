package validator

import (
	"context"
	"reflect"
	"time"

	"github.com/evergreen-ci/slither/rest/model"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ModelValidator decodes candidates into a Go type. Keys the type does
// not declare are rejected. When the decoded value has a Validate()
// error method it is called; returning model.ValidationErrors attributes
// problems to fields, any other error is reported against the whole
// document.
type ModelValidator struct {
	// NewModel returns a pointer to a fresh value to decode into.
	NewModel func() any
	// TagName is the struct tag naming fields, "bson" by default.
	TagName string
}

type validatable interface {
	Validate() error
}

func NewModelValidator(newModel func() any) *ModelValidator {
	return &ModelValidator{NewModel: newModel, TagName: "bson"}
}

func (v *ModelValidator) Validate(_ context.Context, _ string, candidate bson.M) model.ValidationErrors {
	errs := model.ValidationErrors{}
	if v.NewModel == nil {
		errs.Add(model.StructureKey, "no model defined for validation")
		return errs
	}

	out := v.NewModel()
	tag := v.TagName
	if tag == "" {
		tag = "bson"
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.ComposeDecodeHookFunc(dateTimeHook, objectIDHook),
		ErrorUnused: true,
		TagName:     tag,
		Result:      out,
	})
	if err != nil {
		errs.Add(model.StructureKey, err.Error())
		return errs
	}

	if err = decoder.Decode(map[string]any(candidate)); err != nil {
		var decodeErr *mapstructure.Error
		if errors.As(err, &decodeErr) {
			for _, msg := range decodeErr.Errors {
				errs.Add(model.StructureKey, msg)
			}
		} else {
			errs.Add(model.StructureKey, err.Error())
		}
		return errs
	}

	if m, ok := out.(validatable); ok {
		if err = m.Validate(); err != nil {
			var fieldErrs model.ValidationErrors
			if errors.As(err, &fieldErrs) {
				errs.Extend(fieldErrs)
			} else {
				errs.Add(model.StructureKey, err.Error())
			}
		}
	}

	return errs
}

func dateTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	if dt, ok := data.(primitive.DateTime); ok {
		return dt.Time().UTC(), nil
	}
	return data, nil
}

func objectIDHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(primitive.ObjectID{}) || from.Kind() != reflect.String {
		return data, nil
	}
	hex := reflect.ValueOf(data).String()
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, errors.Errorf("'%s' is not an object id", hex)
	}
	return oid, nil
}

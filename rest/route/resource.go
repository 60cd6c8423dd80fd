package route

import (
	"context"
	"strings"
	"time"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/auth"
	"github.com/evergreen-ci/slither/db"
	"github.com/evergreen-ci/slither/rest/model"
	"github.com/evergreen-ci/slither/validator"
	"github.com/evergreen-ci/utility"
	"github.com/gorilla/mux"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	idVar     = "id"
	lookupVar = "lookup"
)

// Transformer rewrites a payload before it is validated. vars holds
// the placeholder values of the matched route.
type Transformer interface {
	Transform(ctx context.Context, record bson.M, vars map[string]string) (bson.M, error)
}

// SaveEvent describes a completed write.
type SaveEvent struct {
	Method     string
	Collection string
	ID         string
	User       *auth.User
	// Changes are the fields that were written. They are empty for
	// deletes.
	Changes bson.M
	// Previous is the stored record before an update or delete.
	Previous model.Record
}

// SaveHook runs after a write has been stored. Its errors are logged
// and never change the response.
type SaveHook interface {
	PostSave(context.Context, SaveEvent) error
}

// URLVarsTransform copies the route placeholders into the payload, so
// that a record posted to /companies/{company}/widgets belongs to that
// company. Values that look like storage identifiers are stored as
// such.
type URLVarsTransform struct{}

func (URLVarsTransform) Transform(_ context.Context, record bson.M, vars map[string]string) (bson.M, error) {
	for k, v := range placeholderFilter(vars) {
		record[k] = v
	}
	return record, nil
}

// NoSaveHook does nothing.
type NoSaveHook struct{}

func (NoSaveHook) PostSave(context.Context, SaveEvent) error { return nil }

// placeholderFilter returns the route placeholders, other than the
// record address, as equality constraints.
func placeholderFilter(vars map[string]string) bson.M {
	out := bson.M{}
	for k, v := range vars {
		if k == idVar || k == lookupVar {
			continue
		}
		out[k] = placeholderValue(v)
	}
	return out
}

func placeholderValue(v string) any {
	if db.IsObjectIDHex(v) {
		if oid, err := primitive.ObjectIDFromHex(v); err == nil {
			return oid
		}
	}
	return v
}

// ResourceOptions declares a resource. Collaborators that are left nil
// are replaced by implementations that allow everything.
type ResourceOptions struct {
	Name string
	// URL is the route of the collection, the pluralized name when
	// empty. It may hold placeholders such as
	// /companies/{company:[a-f0-9]{24}}/widgets.
	URL         string
	Collection  string
	LookupField string
	RootKey     string
	// EnforcePayloadRoot requires write payloads to be wrapped in the
	// root key. It defaults to true.
	EnforcePayloadRoot *bool
	Methods            []string
	// AlwaysReturn lists the verbs that answer with the stored record.
	AlwaysReturn  []string
	Fields        []string
	ExcludeFields []string
	Limit         int
	MaxLimit      int
	CORS          slither.CORSConfig

	Authenticator auth.Authenticator
	Authorizer    auth.Authorizer
	Validator     validator.Validator
	Transformer   Transformer
	SaveHook      SaveHook
}

// Resource is a validated, read only resource declaration.
type Resource struct {
	name          string
	url           string
	collection    string
	lookupField   string
	rootKey       string
	enforceRoot   bool
	methods       []string
	alwaysReturn  []string
	fields        []string
	excludeFields []string
	limit         int
	maxLimit      int
	cors          corsPolicy

	authenticator auth.Authenticator
	authorizer    auth.Authorizer
	validator     validator.Validator
	transformer   Transformer
	saveHook      SaveHook
}

// NewResource validates the options and fills in defaults. The options
// are copied, so later changes to them do not affect the resource.
func NewResource(opts ResourceOptions) (*Resource, error) {
	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(opts.Name == "" && opts.URL == "", "resource must have a name or a url")
	catcher.NewWhen(opts.Limit < 0, "limit cannot be negative")
	catcher.NewWhen(opts.MaxLimit < 0, "max limit cannot be negative")
	catcher.NewWhen(opts.MaxLimit > 0 && opts.Limit > opts.MaxLimit, "limit cannot exceed max limit")
	catcher.NewWhen(len(opts.Fields) > 0 && len(opts.ExcludeFields) > 0, "cannot both include and exclude default fields")
	catcher.NewWhen(opts.CORS.MaxAge < 0, "cors max age cannot be negative")

	r := &Resource{
		name:          opts.Name,
		url:           opts.URL,
		collection:    opts.Collection,
		lookupField:   opts.LookupField,
		rootKey:       opts.RootKey,
		enforceRoot:   opts.EnforcePayloadRoot == nil || *opts.EnforcePayloadRoot,
		methods:       upperAll(opts.Methods),
		alwaysReturn:  upperAll(opts.AlwaysReturn),
		fields:        append([]string(nil), opts.Fields...),
		excludeFields: append([]string(nil), opts.ExcludeFields...),
		limit:         opts.Limit,
		maxLimit:      opts.MaxLimit,
		authenticator: opts.Authenticator,
		authorizer:    opts.Authorizer,
		validator:     opts.Validator,
		transformer:   opts.Transformer,
		saveHook:      opts.SaveHook,
	}

	r.url = slither.ResourceURL(r.name, r.url)
	if r.name == "" {
		r.name = r.url
	}
	if r.lookupField == "" {
		r.lookupField = slither.DefaultLookupField
	}
	catcher.NewWhen(r.lookupField == db.IdKey || r.lookupField == db.PublicIdKey, "lookup field cannot be the identifier")
	if r.rootKey == "" {
		r.rootKey = r.collection
	}
	if len(r.methods) == 0 {
		r.methods = slither.DefaultMethods()
	}
	for _, m := range append(append([]string{}, r.methods...), r.alwaysReturn...) {
		catcher.ErrorfWhen(!utility.StringSliceContains(slither.DefaultMethods(), m), "unsupported method '%s'", m)
	}
	// an unset limit lists every matching record unless a maximum caps it
	if r.maxLimit > 0 && (r.limit == 0 || r.limit > r.maxLimit) {
		r.limit = r.maxLimit
	}

	names, err := mux.NewRouter().Path(r.url).GetVarNames()
	if err != nil {
		catcher.Wrapf(err, "parsing url '%s'", r.url)
	}
	for _, name := range names {
		catcher.ErrorfWhen(name == idVar || name == lookupVar, "url placeholder '%s' is reserved", name)
	}

	r.cors = newCORSPolicy(opts.CORS, r.methods)

	if r.authenticator == nil {
		r.authenticator = auth.NoAuthentication{}
	}
	if r.authorizer == nil {
		r.authorizer = auth.NoAuthorization{}
	}
	if r.validator == nil {
		r.validator = validator.NoValidation{}
	}
	if r.transformer == nil {
		r.transformer = URLVarsTransform{}
	}
	if r.saveHook == nil {
		r.saveHook = NoSaveHook{}
	}

	if catcher.HasErrors() {
		return nil, errors.Wrapf(catcher.Resolve(), "invalid resource '%s'", r.name)
	}
	return r, nil
}

// NewResourceFromConfig builds a resource from its settings. Every
// resource of a service shares the same authenticator.
func NewResourceFromConfig(conf slither.ResourceConfig, authn auth.Authenticator) (*Resource, error) {
	authz, err := auth.NewAuthorizer(conf)
	if err != nil {
		return nil, errors.Wrapf(err, "resource '%s'", conf.Name)
	}
	v, err := validator.New(conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cors := conf.CORS
	cors.Methods = append([]string(nil), conf.CORS.Methods...)
	cors.Origins = copyNilable(conf.CORS.Origins)
	cors.Blocked = append([]string(nil), conf.CORS.Blocked...)
	cors.Headers = copyNilable(conf.CORS.Headers)

	return NewResource(ResourceOptions{
		Name:               conf.Name,
		URL:                conf.URL,
		Collection:         conf.Collection,
		LookupField:        conf.LookupField,
		RootKey:            conf.RootKey,
		EnforcePayloadRoot: conf.EnforcePayloadRoot,
		Methods:            conf.Methods,
		AlwaysReturn:       conf.AlwaysReturn,
		Fields:             conf.Fields,
		ExcludeFields:      conf.ExcludeFields,
		Limit:              conf.Limit,
		MaxLimit:           conf.MaxLimit,
		CORS:               cors,
		Authenticator:      authn,
		Authorizer:         authz,
		Validator:          v,
	})
}

func (r *Resource) Name() string       { return r.name }
func (r *Resource) URL() string        { return r.url }
func (r *Resource) Collection() string { return r.collection }
func (r *Resource) RootKey() string    { return r.rootKey }

// Methods returns the verbs the resource accepts.
func (r *Resource) Methods() []string { return append([]string(nil), r.methods...) }

func (r *Resource) allows(method string) bool {
	return utility.StringSliceContains(r.methods, method)
}

func (r *Resource) returnsPayload(method string) bool {
	return utility.StringSliceContains(r.alwaysReturn, method)
}

func upperAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToUpper(s))
	}
	return out
}

// copyNilable copies a list while keeping the difference between nil
// and empty.
func copyNilable(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

// durationOrDefault is used for settings where zero means unset.
func durationOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

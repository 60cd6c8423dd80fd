package route

import (
	"context"
	"io"
	"net/http"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/auth"
	"github.com/evergreen-ci/slither/db"
	"github.com/evergreen-ci/slither/rest"
	"github.com/evergreen-ci/slither/rest/data"
	"github.com/evergreen-ci/slither/rest/model"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// resourceHandler serves every route of one resource.
type resourceHandler struct {
	resource *Resource
	sc       data.Connector
}

func (h *resourceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), r.Method+" "+h.resource.name)
	defer span.End()
	span.SetAttributes(
		attribute.String(resourceAttribute, h.resource.name),
		attribute.String(methodAttribute, r.Method),
	)

	rs := newRequestState(r)
	defer rs.teardown()

	var corsHeaders http.Header
	if r.Method == slither.MethodOptions {
		headers, err := h.resource.cors.negotiate(r)
		if err != nil {
			writeError(w, r, nil, err)
			return
		}
		writeResponse(w, headers, emptyResponse(http.StatusOK))
		return
	}
	if h.resource.cors.enabled && r.Header.Get(originHeader) != "" {
		headers, err := h.resource.cors.negotiate(r)
		if err != nil {
			writeError(w, r, nil, err)
			return
		}
		corsHeaders = headers
	}

	resp, err := h.handle(ctx, r, rs)
	if err != nil {
		apiErr := rest.AsAPIError(err)
		span.SetAttributes(attribute.Int(statusAttribute, apiErr.StatusCode))
		if apiErr.Kind == rest.Internal {
			span.RecordError(err)
			span.SetStatus(codes.Error, "internal error")
		}
		writeError(w, r, corsHeaders, err)
		return
	}

	span.SetAttributes(attribute.Int(statusAttribute, resp.status))
	writeResponse(w, corsHeaders, resp)
}

// handle runs the checks shared by every verb and then dispatches.
func (h *resourceHandler) handle(ctx context.Context, r *http.Request, rs *requestState) (*response, error) {
	res := h.resource

	if !res.allows(rs.method) || !routeAccepts(rs) {
		return nil, rest.Errorf(rest.MethodNotAllowed, "Method Unavailable")
	}
	if res.collection == "" {
		return nil, rest.Errorf(rest.MisconfiguredResource, "No collection defined")
	}

	if slither.IsWriteMethod(rs.method) {
		payload, err := res.readPayload(r)
		if err != nil {
			return nil, err
		}
		rs.payload = payload
	}

	user, err := res.authenticator.Authenticate(ctx, r)
	if err != nil {
		return nil, err
	}
	rs.user = user
	ctx = auth.AttachUser(ctx, user)

	authzReq := auth.AuthorizationRequest{Method: rs.method, Collection: res.collection, User: user}
	limits, err := res.authorizer.AccessLimits(ctx, authzReq)
	if err != nil {
		return nil, err
	}
	rs.limits = db.MergeFilters(placeholderFilter(rs.vars), limits)

	if rs.addressesInstance() {
		if rs.instance, err = h.preload(ctx, r, rs); err != nil {
			return nil, err
		}
		authzReq.Instance = rs.instance
	}

	if err = res.authorizer.IsAuthorized(ctx, authzReq); err != nil {
		return nil, err
	}

	switch rs.method {
	case slither.MethodGet:
		if rs.instance != nil {
			return res.wrap(http.StatusOK, rs.instance), nil
		}
		return h.list(ctx, r, rs)
	case slither.MethodPost:
		return h.create(ctx, r, rs)
	case slither.MethodPut, slither.MethodPatch:
		return h.update(ctx, rs)
	case slither.MethodDelete:
		return h.remove(ctx, rs)
	default:
		return nil, rest.Errorf(rest.MethodNotAllowed, "Method Unavailable")
	}
}

// routeAccepts checks the verb against the kind of route: records are
// created on the collection and changed through their own address.
func routeAccepts(rs *requestState) bool {
	switch rs.method {
	case slither.MethodPost:
		return !rs.addressesInstance()
	case slither.MethodPut, slither.MethodPatch, slither.MethodDelete:
		return rs.addressesInstance()
	default:
		return true
	}
}

// readPayload decodes the body of a write and unwraps it from the root
// key. Identifiers are assigned by storage, so any supplied by the
// client are dropped.
func (r *Resource) readPayload(req *http.Request) (bson.M, error) {
	body, err := readBody(req)
	if err != nil {
		return nil, rest.Errorf(rest.BadPayload, "Unable to read request body")
	}
	doc, err := model.DecodeDocument(body)
	if err != nil {
		return nil, rest.Errorf(rest.BadPayload, "Malformed JSON payload")
	}

	payload := doc
	if inner, ok := doc[r.rootKey]; ok {
		nested, isDoc := inner.(bson.M)
		if !isDoc {
			return nil, rest.Errorf(rest.BadPayload, "Invalid JSON root")
		}
		payload = nested
	} else if r.enforceRoot {
		return nil, rest.Errorf(rest.BadPayload, "No collection in payload")
	}

	delete(payload, db.IdKey)
	delete(payload, db.PublicIdKey)
	return payload, nil
}

// preload finds the record the route addresses within the caller's
// limits. Records outside the limits are reported as missing.
func (h *resourceHandler) preload(ctx context.Context, r *http.Request, rs *requestState) (model.Record, error) {
	res := h.resource

	var filter bson.M
	if id, ok := rs.vars[idVar]; ok {
		idFilter, err := db.IDFilter(id)
		if err != nil {
			return nil, rest.Errorf(rest.NotFound, "No record found for this lookup")
		}
		filter = idFilter
	} else {
		filter = bson.M{res.lookupField: rs.vars[lookupVar]}
	}

	opts := data.FindOptions{
		Filter: db.MergeFilters(filter, rs.limits),
		Limit:  2,
	}
	if rs.method == slither.MethodGet {
		opts.Projection = res.projection(r.URL.Query())
	}

	records, err := h.sc.Find(ctx, res.collection, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "preloading record from '%s'", res.collection)
	}
	switch len(records) {
	case 0:
		return nil, rest.Errorf(rest.NotFound, "No record found for this lookup")
	case 1:
		return records[0], nil
	default:
		return nil, rest.Errorf(rest.MultipleRecordsFound, "Multiple records found for this lookup")
	}
}

func (h *resourceHandler) list(ctx context.Context, r *http.Request, rs *requestState) (*response, error) {
	res := h.resource
	opts, err := res.listOptions(r.URL.Query())
	if err != nil {
		return nil, err
	}
	opts.Filter = db.MergeFilters(opts.Filter, rs.limits)

	records, err := h.sc.Find(ctx, res.collection, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "listing '%s'", res.collection)
	}
	if records == nil {
		records = []model.Record{}
	}
	return res.wrap(http.StatusOK, records), nil
}

// prepare transforms a payload and pins the fields the caller's limits
// fix, so writes cannot move records out of the caller's reach.
func (h *resourceHandler) prepare(ctx context.Context, rs *requestState) (bson.M, error) {
	changes, err := h.resource.transformer.Transform(ctx, rs.payload, rs.vars)
	if err != nil {
		return nil, err
	}
	if changes == nil {
		changes = bson.M{}
	}
	for k, v := range rs.limits {
		if isEqualityConstraint(k, v) {
			changes[k] = v
		}
	}
	return changes, nil
}

func isEqualityConstraint(key string, value any) bool {
	if len(key) > 0 && key[0] == '$' {
		return false
	}
	switch value.(type) {
	case bson.M, bson.D, map[string]any, bson.A, []any:
		return false
	default:
		return true
	}
}

func (h *resourceHandler) validate(ctx context.Context, method string, candidate bson.M) error {
	errs := h.resource.validator.Validate(ctx, method, candidate)
	if errs.HasErrors() {
		return rest.NewError(rest.ValidationFailed, errs)
	}
	return nil
}

func (h *resourceHandler) create(ctx context.Context, r *http.Request, rs *requestState) (*response, error) {
	res := h.resource
	record, err := h.prepare(ctx, rs)
	if err != nil {
		return nil, err
	}
	if err = h.validate(ctx, rs.method, record); err != nil {
		return nil, err
	}

	id, err := h.sc.Create(ctx, res.collection, record)
	if err != nil {
		return nil, writeFailure(err, "creating record in '%s'", res.collection)
	}
	h.postSave(ctx, rs, SaveEvent{ID: id, Changes: record})

	resp := emptyResponse(http.StatusCreated)
	if res.returnsPayload(rs.method) {
		stored, err := h.fetch(ctx, id, nil)
		if err != nil {
			return nil, err
		}
		resp = res.wrap(http.StatusCreated, stored)
	}
	resp.location = res.location(r, rs.vars, id)
	return resp, nil
}

func (h *resourceHandler) update(ctx context.Context, rs *requestState) (*response, error) {
	res := h.resource
	changes, err := h.prepare(ctx, rs)
	if err != nil {
		return nil, err
	}

	fullReplace := rs.method == slither.MethodPut
	candidate := changes
	if !fullReplace {
		candidate = bson.M{}
		for k, v := range rs.instance {
			if k != db.PublicIdKey {
				candidate[k] = v
			}
		}
		for k, v := range changes {
			candidate[k] = v
		}
	}
	if err = h.validate(ctx, rs.method, candidate); err != nil {
		return nil, err
	}

	id := rs.instance.ID()
	stored, err := h.sc.Update(ctx, res.collection, id, changes, fullReplace)
	if db.ResultsNotFound(err) {
		return nil, rest.Errorf(rest.NotFound, "No record found for this lookup")
	}
	if err != nil {
		return nil, writeFailure(err, "updating record '%s' in '%s'", id, res.collection)
	}
	h.postSave(ctx, rs, SaveEvent{ID: id, Changes: changes, Previous: rs.instance})

	if res.returnsPayload(rs.method) {
		if stored, err = h.fetch(ctx, id, stored); err != nil {
			return nil, err
		}
		return res.wrap(http.StatusOK, stored), nil
	}
	return emptyResponse(http.StatusNoContent), nil
}

// writeFailure reports storage rejections of a written record to the
// client. Anything else stays an internal error.
func writeFailure(err error, format string, args ...any) error {
	switch {
	case db.IsDuplicateKey(err):
		return rest.Errorf(rest.DuplicateRecord, "Record conflicts with an existing record")
	case db.IsDocumentLimit(err):
		return rest.Errorf(rest.BadPayload, "Record is too large")
	default:
		return errors.Wrapf(err, format, args...)
	}
}

// fetch reads a stored record with the resource's default projection.
// Without one, a record the caller already holds is used as is.
func (h *resourceHandler) fetch(ctx context.Context, id string, stored model.Record) (model.Record, error) {
	res := h.resource
	projection := db.Projection(res.fields, res.excludeFields)
	if stored != nil && len(projection) == 0 {
		return stored, nil
	}
	idFilter, err := db.IDFilter(id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	record, err := h.sc.FindOne(ctx, res.collection, idFilter, projection)
	if err != nil {
		return nil, errors.Wrapf(err, "reading record '%s' from '%s'", id, res.collection)
	}
	if record == nil {
		return nil, rest.Errorf(rest.NotFound, "No record found for this lookup")
	}
	return record, nil
}

func (h *resourceHandler) remove(ctx context.Context, rs *requestState) (*response, error) {
	res := h.resource
	id := rs.instance.ID()
	err := h.sc.Delete(ctx, res.collection, id)
	if db.ResultsNotFound(err) {
		return nil, rest.Errorf(rest.NotFound, "No record found for this lookup")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "deleting record '%s' from '%s'", id, res.collection)
	}
	h.postSave(ctx, rs, SaveEvent{ID: id, Previous: rs.instance})

	return emptyResponse(http.StatusNoContent), nil
}

func (h *resourceHandler) postSave(ctx context.Context, rs *requestState, event SaveEvent) {
	event.Method = rs.method
	event.Collection = h.resource.collection
	event.User = rs.user

	err := h.resource.saveHook.PostSave(ctx, event)
	grip.Warning(message.WrapError(err, message.Fields{
		"message":    "post save hook failed",
		"resource":   h.resource.name,
		"collection": event.Collection,
		"method":     event.Method,
		"id":         event.ID,
	}))
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body := utility.NewRequestReader(r)
	defer body.Close()
	return io.ReadAll(body)
}

package route

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/evergreen-ci/slither/db"
	"github.com/evergreen-ci/slither/rest"
	"github.com/evergreen-ci/slither/rest/data"
	"github.com/evergreen-ci/slither/rest/model"
	"github.com/evergreen-ci/utility"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	whereParam  = "where"
	sortParam   = "sort"
	limitParam  = "_limit"
	skipParam   = "_skip"
	fieldsParam = "_fields"
)

// listOptions reads the filter, sort, paging and projection of a
// collection request.
func (r *Resource) listOptions(query url.Values) (data.FindOptions, error) {
	opts := data.FindOptions{
		Filter:     bson.M{},
		Projection: r.projection(query),
		Limit:      int64(r.limit),
	}

	if where := query.Get(whereParam); where != "" {
		filter, err := model.DecodeDocument([]byte(where))
		if err != nil {
			return opts, rest.Errorf(rest.BadPayload, "Invalid where parameter")
		}
		opts.Filter = publicIDFilter(filter)
	}

	if sort := query.Get(sortParam); sort != "" {
		fields, err := model.DecodeSort([]byte(sort))
		if err != nil {
			return opts, rest.Errorf(rest.BadPayload, "Invalid sort parameter")
		}
		opts.Sort = db.SortDocument(fields)
	}

	if limit := query.Get(limitParam); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return opts, rest.Errorf(rest.BadPayload, "Invalid %s parameter", limitParam)
		}
		if r.maxLimit > 0 && n > r.maxLimit {
			n = r.maxLimit
		}
		opts.Limit = int64(n)
	}

	if skip := query.Get(skipParam); skip != "" {
		n, err := strconv.Atoi(skip)
		if err != nil || n < 0 {
			return opts, rest.Errorf(rest.BadPayload, "Invalid %s parameter", skipParam)
		}
		opts.Skip = int64(n)
	}

	return opts, nil
}

// projection combines the requested fields with the resource defaults.
// Requested fields replace the default field list, but excluded fields
// can never be requested.
func (r *Resource) projection(query url.Values) bson.M {
	requested := []string{}
	for _, value := range query[fieldsParam] {
		for _, field := range strings.Split(value, ",") {
			field = strings.TrimSpace(field)
			if field == "" || utility.StringSliceContains(r.excludeFields, field) {
				continue
			}
			if field == db.PublicIdKey {
				field = db.IdKey
			}
			requested = append(requested, field)
		}
	}
	if len(requested) > 0 {
		return db.Projection(requested, nil)
	}
	return db.Projection(r.fields, r.excludeFields)
}

// publicIDFilter lets clients filter on the public id field.
func publicIDFilter(filter bson.M) bson.M {
	value, ok := filter[db.PublicIdKey]
	if !ok {
		return filter
	}
	delete(filter, db.PublicIdKey)
	if s, isString := value.(string); isString {
		filter[db.IdKey] = placeholderValue(s)
	} else {
		filter[db.IdKey] = value
	}
	return filter
}

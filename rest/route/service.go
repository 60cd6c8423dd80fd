package route

import (
	"net/http"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/rest/data"
	"github.com/gorilla/mux"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
)

var routeMethods = []string{
	slither.MethodGet,
	slither.MethodPost,
	slither.MethodPut,
	slither.MethodPatch,
	slither.MethodDelete,
	slither.MethodOptions,
}

// AttachHandler registers the routes of each resource on the router:
// the collection, records addressed by identifier and records addressed
// by lookup value, in that order so identifiers win over lookups. Every
// verb is routed to the resource so that refused verbs are answered in
// the same format as everything else.
func AttachHandler(root *mux.Router, sc data.Connector, resources ...*Resource) http.Handler {
	for _, res := range resources {
		h := &resourceHandler{resource: res, sc: sc}

		root.Handle(res.url, h).Methods(routeMethods...)
		root.Handle(res.url+"/{"+idVar+":"+slither.ObjectIDPattern+"}", h).Methods(routeMethods...)
		root.Handle(res.url+"/{"+lookupVar+"}", h).Methods(routeMethods...)

		grip.Debug(message.Fields{
			"message":    "attached resource",
			"resource":   res.name,
			"url":        res.url,
			"collection": res.collection,
			"methods":    res.methods,
		})
	}

	return root
}

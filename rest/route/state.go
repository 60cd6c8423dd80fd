package route

import (
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/slither/auth"
	"github.com/evergreen-ci/slither/rest/model"
	"go.mongodb.org/mongo-driver/bson"
)

// requestState is the scratch space of a single request. It is created
// when the request arrives, handed down the pipeline and cleared when
// the request ends, whatever the outcome.
type requestState struct {
	method string
	vars   map[string]string
	user   *auth.User

	// payload is the unwrapped request body of writes.
	payload bson.M
	// limits scope the records the caller may act on.
	limits bson.M
	// instance is the record addressed by the route, if any.
	instance model.Record
}

func newRequestState(r *http.Request) *requestState {
	vars := map[string]string{}
	for k, v := range gimlet.GetVars(r) {
		vars[k] = v
	}
	return &requestState{method: r.Method, vars: vars}
}

func (rs *requestState) teardown() {
	rs.vars = nil
	rs.user = nil
	rs.payload = nil
	rs.limits = nil
	rs.instance = nil
}

// addressesInstance reports whether the route names a single record.
func (rs *requestState) addressesInstance() bool {
	_, byID := rs.vars[idVar]
	_, byLookup := rs.vars[lookupVar]
	return byID || byLookup
}

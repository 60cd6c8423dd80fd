package route

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/rest"
	"github.com/gorilla/mux"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
)

// response is the outcome of a request. A nil body is sent as an empty
// response.
type response struct {
	status   int
	body     any
	location string
}

func (r *Resource) wrap(status int, payload any) *response {
	return &response{status: status, body: map[string]any{r.rootKey: payload}}
}

func emptyResponse(status int) *response {
	return &response{status: status}
}

func setCacheHeaders(h http.Header) {
	h.Set("Cache-Control", fmt.Sprintf("max-age=%d,must-revalidate", int(slither.CacheMaxAge.Seconds())))
	h.Set("Expires", time.Now().Add(slither.CacheMaxAge).UTC().Format(http.TimeFormat))
}

func writeResponse(w http.ResponseWriter, extra http.Header, resp *response) {
	h := w.Header()
	setCacheHeaders(h)
	for k, values := range extra {
		for _, v := range values {
			h.Add(k, v)
		}
	}
	if resp.location != "" {
		h.Set("Location", resp.location)
	}

	if resp.body == nil {
		w.WriteHeader(resp.status)
		return
	}
	gimlet.WriteJSONResponse(w, resp.status, resp.body)
}

func writeError(w http.ResponseWriter, r *http.Request, extra http.Header, err error) {
	apiErr := rest.AsAPIError(err)
	msg := message.Fields{
		"message": "request failed",
		"method":  r.Method,
		"path":    r.URL.Path,
		"status":  apiErr.StatusCode,
		"kind":    apiErr.Kind,
	}
	if apiErr.Kind == rest.Internal {
		grip.Error(message.WrapError(err, msg))
	} else {
		msg["error"] = apiErr.Body
		grip.Debug(msg)
	}

	writeResponse(w, extra, &response{status: apiErr.StatusCode, body: apiErr})
}

// location builds the address of a new record from the route the
// request matched, with its placeholders filled in.
func (r *Resource) location(req *http.Request, vars map[string]string, id string) string {
	if current := mux.CurrentRoute(req); current != nil {
		pairs := make([]string, 0, 2*len(vars))
		for k, v := range vars {
			pairs = append(pairs, k, v)
		}
		if u, err := current.URLPath(pairs...); err == nil {
			return strings.TrimSuffix(u.Path, "/") + "/" + id
		}
	}
	return strings.TrimSuffix(req.URL.Path, "/") + "/" + id
}

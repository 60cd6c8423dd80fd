package service

import (
	"context"
	"net/http"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/rest/route"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
)

const healthCheckTimeout = 5 * time.Second

type statusResponse struct {
	BuildRevision string   `json:"build_revision"`
	Database      string   `json:"database"`
	Resources     []string `json:"resources"`
}

func statusHandler(check HealthCheck, resources []*route.Resource) http.HandlerFunc {
	names := make([]string, 0, len(resources))
	for _, r := range resources {
		names = append(names, r.Name())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			BuildRevision: slither.BuildRevision,
			Database:      "ok",
			Resources:     names,
		}
		if check == nil {
			gimlet.WriteJSONResponse(w, http.StatusOK, resp)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := check(ctx); err != nil {
			grip.Warning(message.WrapError(err, message.Fields{
				"message": "status check failed",
			}))
			resp.Database = "unreachable"
			gimlet.WriteJSONResponse(w, http.StatusServiceUnavailable, resp)
			return
		}
		gimlet.WriteJSONResponse(w, http.StatusOK, resp)
	}
}

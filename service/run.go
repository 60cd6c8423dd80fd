package service

import (
	"context"
	"net/http"
	"time"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/auth"
	"github.com/evergreen-ci/slither/rest/route"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout bounds how long in-flight requests may run
// once the service is asked to stop.
const DefaultShutdownTimeout = 30 * time.Second

// Run serves until the context is canceled or the server fails, then
// shuts the server down gracefully.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "serving on '%s'", srv.Addr)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		grip.Info(message.Fields{
			"message": "shutting down service",
			"service": srv.Addr,
			"timeout": shutdownTimeout.String(),
		})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdownCtx), "shutting down server")
	})

	return g.Wait()
}

// BuildResources constructs the resources declared in the settings,
// all sharing one authenticator.
func BuildResources(confs []slither.ResourceConfig, authn auth.Authenticator) ([]*route.Resource, error) {
	catcher := grip.NewBasicCatcher()
	out := make([]*route.Resource, 0, len(confs))
	for _, conf := range confs {
		r, err := route.NewResourceFromConfig(conf, authn)
		if err != nil {
			catcher.Wrapf(err, "resource '%s'", conf.Name)
			continue
		}
		out = append(out, r)
	}
	if catcher.HasErrors() {
		return nil, catcher.Resolve()
	}
	return out, nil
}

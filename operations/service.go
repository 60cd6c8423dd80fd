package operations

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/auth"
	"github.com/evergreen-ci/slither/rest/data"
	"github.com/evergreen-ci/slither/service"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const closeTimeout = 10 * time.Second

func Service() cli.Command {
	return cli.Command{
		Name:  "service",
		Usage: "run slither services",
		Subcommands: []cli.Command{
			startWebService(),
		},
	}
}

func startWebService() cli.Command {
	return cli.Command{
		Name:   "web",
		Usage:  "serve the configured resources over HTTP",
		Flags:  serviceConfigFlags(),
		Before: mergeBeforeFuncs(requireFileExists(confFlagName)),
		Action: func(c *cli.Context) error {
			confPath := c.String(confFlagName)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			defer recovery.LogStackTraceAndExit("slither web service")

			env, err := slither.NewEnvironment(ctx, confPath, nil)
			if err != nil {
				return errors.Wrap(err, "configuring application environment")
			}
			defer func() {
				closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
				defer closeCancel()
				grip.Warning(errors.Wrap(env.Close(closeCtx), "closing environment"))
			}()

			settings := env.Settings()
			if !c.GlobalIsSet("level") {
				grip.Warning(errors.Wrap(setLogLevel(settings.LogLevel), "setting log level"))
			}

			handler, err := newWebHandler(settings, data.NewDBConnector(env.DB()), &auth.DBCredentialStore{DB: env.DB()},
				func(ctx context.Context) error { return env.Client().Ping(ctx, nil) })
			if err != nil {
				return errors.Wrap(err, "building service handler")
			}

			go listenForSIGTERM(cancel)

			grip.Notice(message.Fields{
				"build":     slither.BuildRevision,
				"process":   grip.Name(),
				"resources": len(settings.Resources),
				"auth":      settings.Auth.Kind,
			})

			return service.Run(ctx, service.GetServer(settings.Api.Address(), handler), service.DefaultShutdownTimeout)
		},
	}
}

// newWebHandler wires the configured resources to storage.
func newWebHandler(settings *slither.Settings, sc data.Connector, store auth.CredentialStore, check service.HealthCheck) (http.Handler, error) {
	authn, err := auth.NewAuthenticator(settings.Auth, store)
	if err != nil {
		return nil, errors.Wrap(err, "configuring authentication")
	}

	resources, err := service.BuildResources(settings.Resources, authn)
	if err != nil {
		return nil, errors.Wrap(err, "configuring resources")
	}

	return service.GetRouter(settings.Api, sc, check, resources...)
}

func listenForSIGTERM(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 5)
	signal.Notify(sigChan, syscall.SIGTERM, os.Interrupt)
	sig := <-sigChan
	grip.Infof("received %s, terminating", sig)
	cancel()
}

package slither

import (
	"context"
	"sync"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/jpillora/backoff"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Environment provides application-level services (database
// connection, configuration and shutdown hooks).
type Environment interface {
	// Returns the settings object. The settings are validated at
	// construction and must not be modified afterwards.
	Settings() *Settings

	Client() *mongo.Client
	DB() *mongo.Database

	// RegisterCloser adds a function object to an internal
	// tracker to be called by the Close method before process
	// termination. The name is used in reporting and must be unique.
	RegisterCloser(string, func(context.Context) error)
	// Close calls all registered closers in the environment.
	Close(context.Context) error
}

// NewEnvironment constructs an Environment from a settings file (or
// from the given settings when the path is empty) and connects to the
// database. Connecting retries with backoff until the configured number
// of attempts is exhausted.
func NewEnvironment(ctx context.Context, confPath string, settings *Settings) (Environment, error) {
	e := &envState{
		settings: settings,
		closers:  map[string]func(context.Context) error{},
	}

	if err := e.initSettings(confPath); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := e.initDB(ctx, e.settings.Database); err != nil {
		return nil, errors.Wrap(err, "configuring database")
	}

	if err := e.initTracer(ctx, e.settings.Tracer); err != nil {
		return nil, errors.Wrap(err, "initializing tracer")
	}

	return e, nil
}

type envState struct {
	settings *Settings
	client   *mongo.Client
	mu       sync.RWMutex
	closers  map[string]func(context.Context) error
}

func (e *envState) initSettings(path string) error {
	var err error

	if e.settings == nil {
		if path == "" {
			return errors.New("no settings or settings file given")
		}
		e.settings, err = NewSettings(path)
		if err != nil {
			return errors.Wrap(err, "getting settings from file")
		}
		return nil
	}

	return errors.Wrap(e.settings.Validate(), "validating settings")
}

func (e *envState) initDB(ctx context.Context, settings DBSettings) error {
	opts := options.Client().ApplyURI(settings.Url).SetConnectTimeout(settings.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "constructing database client")
	}

	if err = pingWithBackoff(ctx, client, settings.ConnectAttempts); err != nil {
		grip.Warning(message.WrapError(client.Disconnect(ctx), message.Fields{
			"message": "problem disconnecting after failed ping",
			"url":     settings.Url,
		}))
		return errors.Wrap(err, "connecting to the database")
	}

	e.mu.Lock()
	e.client = client
	e.mu.Unlock()

	e.RegisterCloser("database-client", func(ctx context.Context) error {
		return errors.Wrap(client.Disconnect(ctx), "disconnecting database client")
	})

	grip.Info(message.Fields{
		"message": "connected to database",
		"db":      settings.DB,
	})

	return nil
}

// initTracer installs a global tracer provider exporting to the
// configured collector. Without one, spans go to the no-op provider.
func (e *envState) initTracer(ctx context.Context, conf TracerConfig) error {
	if !conf.Enabled {
		grip.Debug("tracer is disabled")
		return nil
	}

	clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(conf.CollectorEndpoint)}
	if conf.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(clientOpts...))
	if err != nil {
		return errors.Wrap(err, "initializing otel exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(ProgramName),
			semconv.ServiceVersion(BuildRevision),
		)),
	)
	tp.RegisterSpanProcessor(utility.NewAttributeSpanProcessor())
	otel.SetTracerProvider(tp)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		grip.Error(errors.Wrap(err, "otel error"))
	}))

	e.RegisterCloser("tracer-provider", func(ctx context.Context) error {
		catcher := grip.NewBasicCatcher()
		catcher.Wrap(tp.Shutdown(ctx), "trace provider shutdown")
		catcher.Wrap(exp.Shutdown(ctx), "trace exporter shutdown")
		return catcher.Resolve()
	})

	return nil
}

func pingWithBackoff(ctx context.Context, client *mongo.Client, attempts int) error {
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for {
		if err = client.Ping(ctx, nil); err == nil {
			return nil
		}
		if int(b.Attempt())+1 >= attempts {
			return errors.Wrapf(err, "database unreachable after %d attempts", attempts)
		}

		wait := b.Duration()
		grip.Debug(message.Fields{
			"message": "database ping failed, retrying",
			"attempt": b.Attempt(),
			"wait":    wait.String(),
			"error":   err.Error(),
		})

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.WithStack(ctx.Err())
		case <-timer.C:
		}
	}
}

func (e *envState) Settings() *Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.settings
}

func (e *envState) Client() *mongo.Client {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.client
}

func (e *envState) DB() *mongo.Database {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.client.Database(e.settings.Database.DB)
}

func (e *envState) RegisterCloser(name string, closer func(context.Context) error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.closers[name]; ok {
		grip.Critical(message.Fields{
			"closer":  name,
			"message": "duplicate closer registered",
			"cause":   "programmer error",
		})
	}
	e.closers[name] = closer
}

func (e *envState) Close(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	deadline, _ := ctx.Deadline()
	catcher := grip.NewBasicCatcher()
	wg := &sync.WaitGroup{}
	for n, closer := range e.closers {
		if closer == nil {
			continue
		}

		wg.Add(1)
		go func(name string, close func(context.Context) error) {
			defer wg.Done()
			grip.Info(message.Fields{
				"message":  "calling closer",
				"closer":   name,
				"deadline": deadline,
			})
			catcher.Add(close(ctx))
		}(n, closer)
	}

	wg.Wait()
	return catcher.Resolve()
}

// Package server assembles the fiber application from explicitly passed
// collaborators and an explicit list of active middleware layers.
package server

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"helloapi/docs"
	"helloapi/internal/http/handler"
	"helloapi/internal/http/middleware"
	"helloapi/internal/security"
	"helloapi/internal/service"
)

// DefaultRole is required on the greeting routes when Security is active.
const DefaultRole = "USER"

var (
	ErrNoService   = errors.New("server: hello service is required")
	ErrNoDirectory = errors.New("server: security layer requires a user directory")
	ErrNoLimiter   = errors.New("server: rate limit layer requires a limiter")
)

// Layers enumerates which middleware layers are active. A zero Layers
// runs bare route handlers only.
type Layers struct {
	RequestID bool
	Logger    bool
	Metrics   bool
	Tracing   bool
	Security  bool
	RateLimit bool
	Docs      bool
}

// DefaultLayers is the production set minus tracing and rate limiting,
// which are opt-in through configuration.
func DefaultLayers() Layers {
	return Layers{
		RequestID: true,
		Logger:    true,
		Metrics:   true,
		Security:  true,
		Docs:      true,
	}
}

// Options carries every collaborator the app is built from.
type Options struct {
	Service   service.HelloService
	Directory *security.Directory
	// RequiredRole defaults to DefaultRole.
	RequiredRole string
	// Realm is sent in the WWW-Authenticate challenge. Defaults to "helloapi".
	Realm string
	// Registry receives the HTTP metrics and backs /metrics. A fresh registry is created when nil.
	Registry *prometheus.Registry
	// Logger is used by the request logging layer. Defaults to a no-op logger.
	Logger  *zap.Logger
	Limiter *rate.Limiter
	Layers  Layers
}

// New builds the fiber app described by opts.
func New(opts Options) (*fiber.App, error) {
	if opts.Service == nil {
		return nil, ErrNoService
	}
	if opts.Layers.Security && opts.Directory == nil {
		return nil, ErrNoDirectory
	}
	if opts.Layers.RateLimit && opts.Limiter == nil {
		return nil, ErrNoLimiter
	}
	if opts.RequiredRole == "" {
		opts.RequiredRole = DefaultRole
	}
	if opts.Realm == "" {
		opts.Realm = "helloapi"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handler.ErrorHandler(),
		DisableStartupMessage: true,
	})

	l := opts.Layers
	if l.Tracing {
		app.Use(otelfiber.Middleware())
	}
	app.Use(middleware.When(l.RequestID, middleware.RequestID))
	app.Use(middleware.When(l.Logger, func() fiber.Handler {
		return middleware.LoggerWithZap(opts.Logger)
	}))

	if l.Metrics {
		reg := opts.Registry
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		prom, err := middleware.NewPrometheusMiddleware(reg)
		if err != nil {
			return nil, err
		}
		app.Use(prom.Handler())
		app.Get(middleware.MetricsPath, handler.Metrics(reg))
	}

	app.Use(middleware.When(l.RateLimit, func() fiber.Handler {
		return middleware.RateLimit(opts.Limiter)
	}))

	if l.Docs {
		app.Get("/swagger/*", swaggerUI)
	}

	guard := middleware.When(l.Security, func() fiber.Handler {
		return middleware.RequireRole(opts.Directory, opts.RequiredRole, opts.Realm)
	})
	handler.RegisterRoutes(app, opts.Service, guard)

	return app, nil
}

// swaggerUI serves the UI with host and scheme taken from the incoming request.
func swaggerUI(c *fiber.Ctx) error {
	scheme := c.Protocol()
	if proto := c.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}

	docs.SwaggerInfo.Host = c.Get(fiber.HeaderHost)
	docs.SwaggerInfo.Schemes = []string{scheme}

	return swagger.HandlerDefault(c)
}

// Run serves app on ln until ctx is cancelled, then shuts down within timeout.
func Run(ctx context.Context, app *fiber.App, ln net.Listener, timeout time.Duration, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("server_listening", zap.String("addr", ln.Addr().String()))
		errCh <- app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server_shutting_down", zap.Duration("timeout", timeout))
	if err := app.ShutdownWithTimeout(timeout); err != nil {
		return err
	}
	return <-errCh
}

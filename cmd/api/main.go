package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"helloapi/internal/config"
	"helloapi/internal/http/server"
	"helloapi/internal/logging"
	"helloapi/internal/otel"
	"helloapi/internal/security"
	"helloapi/internal/service"
)

// @title Hello API
// @version 1.0
// @BasePath /
// @securityDefinitions.basic BasicAuth
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	log := logging.NewStdout(logging.Location(cfg.Timezone))
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := otel.Init(ctx, log)
		if err != nil {
			log.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Error("tracing_shutdown_failed", zap.Error(err))
			}
		}()
	}

	dir, err := security.FromConfig(cfg.Security)
	if err != nil {
		log.Fatal("failed to load user directory", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	layers := server.DefaultLayers()
	layers.Security = cfg.Security.Enabled
	layers.Metrics = cfg.MetricsEnabled
	layers.Tracing = cfg.TracingEnabled
	layers.RateLimit = cfg.RateLimit.Enabled

	app, err := server.New(server.Options{
		Service:      service.NewHelloService(),
		Directory:    dir,
		RequiredRole: cfg.Security.RequiredRole,
		Realm:        cfg.Security.Realm,
		Registry:     reg,
		Logger:       log,
		Limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst),
		Layers:       layers,
	})
	if err != nil {
		log.Fatal("failed to build server", zap.Error(err))
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Fatal("failed to listen", zap.String("port", cfg.Port), zap.Error(err))
	}

	timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if err := server.Run(ctx, app, ln, timeout, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server_stopped")
}

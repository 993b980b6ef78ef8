package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/sujalbistaa/postwall/internal/auth"
	"github.com/sujalbistaa/postwall/internal/config"
	"github.com/sujalbistaa/postwall/internal/db"
	"github.com/sujalbistaa/postwall/internal/events"
	routes "github.com/sujalbistaa/postwall/internal/http"
	"github.com/sujalbistaa/postwall/internal/posts"
	"github.com/sujalbistaa/postwall/internal/telemetry"
	"github.com/sujalbistaa/postwall/internal/uploads"
	"github.com/sujalbistaa/postwall/internal/ws"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// run wires the server and blocks until SIGINT or SIGTERM.
func run() error {
	cfg, err := config.Load()
	telemetry.InitLogger(cfg.IsLocal())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Tracing
	if cfg.OtelEndpoint != "" {
		tp, err := telemetry.InitTracer(ctx, cfg.OtelEndpoint, cfg.Env)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 2. Database
	store, err := db.Open(ctx, db.Options{
		URL:           cfg.DatabaseURL,
		MongoDatabase: cfg.MongoDatabase,
		Verbose:       cfg.IsLocal(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}()

	slog.Info("Running database migrations...")
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Migrations complete.")

	// 3. Uploads
	images, err := uploads.NewDiskStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("failed to prepare upload directory: %w", err)
	}

	// 4. Real-time fan-out: WebSocket hub, plus NATS when configured
	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	publisher := events.Fanout{hub}
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("postwall"))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer func() { _ = nc.Drain() }()
		publisher = append(publisher, events.NewNatsPublisher(nc))
		slog.Info("Publishing post events to NATS", "url", cfg.NatsURL)
	}

	// 5. Services
	validator, err := auth.NewTokenValidator(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("failed to initialize token validator: %w", err)
	}
	service := posts.NewService(store.Posts(),
		posts.WithPublisher(publisher),
		posts.WithImageStore(images),
	)

	limiter := routes.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	go limiter.Cleanup(ctx, 10*time.Minute, 10*time.Minute)

	// 6. Router
	if !cfg.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupRoutes(router, &routes.Env{
		Posts:          service,
		Uploads:        images,
		Hub:            hub,
		Health:         store,
		Validator:      validator,
		Profiles:       store.Users(),
		Limiter:        limiter,
		UploadDir:      images.Dir,
		MaxUploadBytes: images.MaxBytes,
		CORSOrigin:     cfg.CORSOrigin,
	})

	// 7. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		stop()
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exiting")
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	default:
		return nil
	}
}

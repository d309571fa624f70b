package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/geowhisper/towers/internal/adapters/http"
	"github.com/geowhisper/towers/internal/adapters/mapbox"
	"github.com/geowhisper/towers/internal/adapters/memory"
	natsadapter "github.com/geowhisper/towers/internal/adapters/nats"
	"github.com/geowhisper/towers/internal/adapters/postgres"
	"github.com/geowhisper/towers/internal/adapters/valkey"
	"github.com/geowhisper/towers/internal/core/ports"
	"github.com/geowhisper/towers/internal/core/usecases"
	"github.com/geowhisper/towers/internal/pkg/config"
	"github.com/geowhisper/towers/internal/pkg/logging"
	"github.com/geowhisper/towers/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("geowhisper-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	deps := &http.Dependencies{DB: db}

	// Session store and zone cache share one Valkey client. Without Valkey
	// both fall back to process memory, which is only correct on one node.
	var (
		store ports.KeyValueStore
		cache ports.CacheService
	)
	if client, err := valkey.Connect(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, using in-memory session store", "error", err)
		store = memory.New(cfg.Session.TTL)
		cache = memory.NewCache()
	} else {
		vc := valkey.NewFromClient(client)
		defer vc.Close()
		store = valkey.NewSessionStore(client, cfg.Session.TTL)
		cache = vc
		deps.Cache = vc
	}

	// NATS
	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, label events disabled", "error", err)
	} else {
		defer p.Close()
		publisher = p
		deps.Publisher = p
	}

	// Raw NATS connection for WebSocket relay
	if nc, err := natsadapter.RawConn(cfg.NATS.URL); err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer nc.Close()
		deps.NATS = nc
	}

	// Geocoder
	var geocoder ports.ReverseGeocoder
	if cfg.Geocoder.Enabled() {
		g, err := mapbox.New(cfg.Geocoder.BaseURL, cfg.Geocoder.Token, cfg.Geocoder.Timeout)
		if err != nil {
			log.Fatalf("geocoder: %v", err)
		}
		geocoder = g
	} else {
		slog.Info("no geocoder token configured, serving offline labels only")
	}

	// Use cases
	deps.Labels = usecases.NewLabelService(store, geocoder, publisher)
	deps.Numbers = usecases.NewNumberingService(store)
	deps.Proximity = usecases.NewProximityService(
		postgres.NewZoneRepo(db),
		postgres.NewPostRepo(db),
		cache,
		cfg.Proximity.Usecase(),
	)

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "GeoWhisper Towers API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + http.SessionHeader,
		ExposeHeaders:    http.SessionHeader + ", Link, ETag",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

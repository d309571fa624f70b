package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/geowhisper/towers/internal/adapters/mapbox"
	natsadapter "github.com/geowhisper/towers/internal/adapters/nats"
	"github.com/geowhisper/towers/internal/adapters/valkey"
	"github.com/geowhisper/towers/internal/core/domain"
	"github.com/geowhisper/towers/internal/core/ports"
	"github.com/geowhisper/towers/internal/core/usecases"
	"github.com/geowhisper/towers/internal/pkg/config"
	"github.com/geowhisper/towers/internal/pkg/logging"
	"github.com/geowhisper/towers/internal/pkg/metrics"
	"github.com/geowhisper/towers/internal/pkg/telemetry"
	"github.com/geowhisper/towers/internal/workflows"
)

// maxZonesPerWorkflow bounds one workflow's fan-out; larger requests are split.
const maxZonesPerWorkflow = 50

func main() {
	cfg, err := config.Load("geowhisper-prefetcher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Labels resolved here must land in the same store the API reads.
	vc, err := valkey.Connect(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer vc.Close()
	store := valkey.NewSessionStore(vc, cfg.Session.TTL)

	var geocoder ports.ReverseGeocoder
	if cfg.Geocoder.Enabled() {
		g, err := mapbox.New(cfg.Geocoder.BaseURL, cfg.Geocoder.Token, cfg.Geocoder.Timeout)
		if err != nil {
			log.Fatalf("geocoder: %v", err)
		}
		geocoder = g
	} else {
		slog.Warn("no geocoder token configured, prefetches will be skipped")
	}

	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats publisher unavailable, label events disabled", "error", err)
	} else {
		defer p.Close()
		publisher = p
	}

	labels := usecases.NewLabelService(store, geocoder, publisher)

	// Temporal
	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer tc.Close()

	w := worker.New(tc, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.LabelPrefetchWorkflow)
	w.RegisterActivity(&workflows.LabelActivities{Labels: labels, Geocoding: geocoder != nil})
	if err := w.Start(); err != nil {
		log.Fatalf("worker: %v", err)
	}
	defer w.Stop()

	// NATS prefetch requests start workflows.
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribePrefetchRequests(ctx, func(ctx context.Context, req ports.PrefetchRequest) error {
		return startPrefetch(ctx, tc, cfg.Temporal.TaskQueue, req)
	})
	if err != nil {
		log.Fatalf("subscribe prefetch requests: %v", err)
	}

	// Metrics only; the API serves everything else.
	app := fiber.New(fiber.Config{DisableStartupMessage: true, AppName: "GeoWhisper Prefetcher"})
	app.Get("/metrics", metrics.Handler())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port+1)
		slog.Info("metrics listening", "addr", addr)
		if err := app.Listen(addr); err != nil {
			slog.Error("metrics server", "error", err)
		}
	}()

	slog.Info("label prefetcher started", "task_queue", cfg.Temporal.TaskQueue)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("prefetcher shutting down")
	_ = app.ShutdownWithTimeout(5 * time.Second)
}

// startPrefetch starts one workflow per chunk of the request. The workflow id
// covers session and chunk content so a redelivered message does not start a
// duplicate run.
func startPrefetch(ctx context.Context, tc client.Client, queue string, req ports.PrefetchRequest) error {
	for start := 0; start < len(req.Zones); start += maxZonesPerWorkflow {
		chunk := req.Zones[start:min(start+maxZonesPerWorkflow, len(req.Zones))]

		opts := client.StartWorkflowOptions{
			ID:                       workflowID(req.SessionID, chunk),
			TaskQueue:                queue,
			WorkflowExecutionTimeout: 5 * time.Minute,
		}
		input := workflows.PrefetchInput{SessionID: req.SessionID, Zones: chunk}
		if _, err := tc.ExecuteWorkflow(ctx, opts, workflows.LabelPrefetchWorkflow, input); err != nil {
			metrics.PrefetchesCompleted.WithLabelValues("start_failed").Inc()
			return fmt.Errorf("start prefetch workflow: %w", err)
		}
		metrics.PrefetchesCompleted.WithLabelValues("started").Inc()
	}
	return nil
}

// workflowID is stable for a session and a set of zones.
func workflowID(sessionID string, zones []domain.Zone) string {
	ids := make([]string, len(zones))
	for i, z := range zones {
		ids[i] = z.ID
	}
	sort.Strings(ids)
	name := sessionID + "|" + strings.Join(ids, ",")
	return "label-prefetch-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

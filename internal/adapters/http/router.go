package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/geowhisper/towers/internal/pkg/metrics"
	"github.com/geowhisper/towers/internal/pkg/telemetry"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(telemetry.Middleware())
	app.Use(SessionMiddleware())
	app.Use(RequestLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	// Static segments before :id.
	v1.Get("/zones/nearby", timeout.NewWithContext(NearbyZonesHandler(deps), requestTimeout))
	v1.Get("/zones/current", timeout.NewWithContext(CurrentZoneHandler(deps), requestTimeout))
	v1.Get("/zones/hot", timeout.NewWithContext(HotZonesHandler(deps), requestTimeout))
	v1.Get("/zones/:id/label", timeout.NewWithContext(ZoneLabelHandler(deps), requestTimeout))
	v1.Get("/zones/:id/number", timeout.NewWithContext(ZoneNumberHandler(deps), requestTimeout))
	v1.Get("/zones/:id/posts", timeout.NewWithContext(ZonePostsHandler(deps), requestTimeout))
	v1.Get("/posts/nearby", timeout.NewWithContext(NearbyPostsHandler(deps), requestTimeout))
	v1.Get("/distance", DistanceHandler(deps))

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), requestTimeout))

	SetupDocs(app)

	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS, deps.Publisher)))
	}
}

package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type ctxKey string

const loggerKey ctxKey = "logger"

// RequestLogMiddleware stores a request-scoped *slog.Logger carrying the
// request and session ids in the user context. It runs after the session
// middleware and the tracing middleware so it extends their context.
func RequestLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		sid := sessionID(c)

		attrs := make([]any, 0, 4)
		if rid != "" {
			attrs = append(attrs, "request_id", rid)
		}
		if sid != "" {
			attrs = append(attrs, "session_id", sid)
		}
		if len(attrs) == 0 {
			return c.Next()
		}

		ctx := context.WithValue(c.UserContext(), loggerKey, slog.Default().With(attrs...))
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

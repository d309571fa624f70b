package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SessionHeader carries the caller's session id on requests and responses.
const SessionHeader = "X-Session-ID"

const (
	sessionLocal    = "session_id"
	maxSessionIDLen = 128
)

// SessionMiddleware resolves the session id from the X-Session-ID header, or
// the session query parameter for clients that cannot set headers, and issues
// a fresh one when neither is usable. The id is echoed back.
func SessionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Get(SessionHeader)
		if sid == "" {
			sid = c.Query("session")
		}
		if !validSessionID(sid) {
			sid = uuid.NewString()
		}
		c.Locals(sessionLocal, sid)
		c.Set(SessionHeader, sid)
		return c.Next()
	}
}

func sessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(sessionLocal).(string)
	return sid
}

func validSessionID(s string) bool {
	if s == "" || len(s) > maxSessionIDLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

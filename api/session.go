package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionCookieName = "session_id"
	sessionContextKey = "session_id"
	sessionMaxAge     = 30 * 24 * 60 * 60 // seconds
)

// sessionMiddleware issues an opaque session token on the first request
// lacking one and makes it available to handlers. The cookie is HTTP-only
// and SameSite=Strict; the token is the sole key into cart and fan-out
// state.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(sessionCookieName)
		if err != nil || sid == "" {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteStrictMode)
			c.SetCookie(sessionCookieName, sid, sessionMaxAge, "/", "", false, true)
		}
		c.Set(sessionContextKey, sid)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionContextKey)
}

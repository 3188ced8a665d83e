package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionCookie = "cb_session"
	sessionCtxKey = "sessionToken"

	// The cookie outlives the remote cart; a dead cart id is detected
	// and reset by the store.
	sessionMaxAge = 180 * 24 * 60 * 60
)

// sessionMiddleware reads the storefront session cookie, minting a new token
// on first touch, and exposes it to the handlers.
func sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err != nil || token == "" {
			token = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, token, sessionMaxAge, "/", "", false, true)
		}
		c.Set(sessionCtxKey, token)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	return c.GetString(sessionCtxKey)
}

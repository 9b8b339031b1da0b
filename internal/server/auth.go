package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrUnauthorized is returned when a request carries no valid token.
var ErrUnauthorized = errors.New("server: unauthorized")

// AuthorizationError is the 401 response body.
type AuthorizationError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// authMiddleware rejects requests without the run's bearer token. When
// allowQuery is set the token may also arrive as ?token=, since browsers
// cannot set headers on WebSocket handshakes.
func (s *Server) authMiddleware(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" && allowQuery {
			token = c.Query("token")
		}
		if !s.validToken(token) {
			s.logger.Warn("rejected request", "path", c.Request.URL.Path, "remote", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, AuthorizationError{
				Error:   "AuthorizationError",
				Message: ErrUnauthorized.Error(),
			})
			return
		}
		c.Next()
	}
}

func (s *Server) validToken(token string) bool {
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) == 1
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

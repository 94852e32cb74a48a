package middlewares

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// HeaderViewerId is set by the JWT middleware after a token validates.
	// Handlers read the acting user from here and nowhere else.
	HeaderViewerId = "sub"
)

var jwtSecret []byte

// Setup initializes package scoped state the middlewares need. It must be
// called before any middleware is used.
func Setup() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		// Refuse to start without a signing secret rather than silently
		// accepting unsigned identities.
		panic("JWT_SECRET is not set")
	}
	jwtSecret = []byte(secret)
}

// JWT fetches the bearer token from the Authorization header, validates it
// and stashes the subject claim (the viewer's id) into the request header
// field "sub". It rejects requests without a valid token.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token without subject"})
			c.Abort()
			return
		}

		// Successfully validated the token, expose the viewer id to handlers.
		c.Request.Header.Del(HeaderViewerId)
		c.Request.Header.Add(HeaderViewerId, sub)

		c.Next()
	}
}

package httpgin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ownerKey = "owner_token"

// IdentityMiddleware resolves the caller's owner token. A bearer JWT signed
// with secret (HS256) yields "user:<sub>"; otherwise an X-Session-ID header
// yields "anon:<id>". A bearer token that does not verify is rejected.
// Requests with neither pass through anonymous; handlers that need an owner
// answer 401 themselves.
func IdentityMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if secret != "" && strings.HasPrefix(auth, "Bearer ") {
			sub, err := subjectFromToken(strings.TrimPrefix(auth, "Bearer "), secret)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
				return
			}
			c.Set(ownerKey, "user:"+sub)
			c.Next()
			return
		}

		if sid := strings.TrimSpace(c.GetHeader("X-Session-ID")); sid != "" {
			c.Set(ownerKey, "anon:"+sid)
		}

		c.Next()
	}
}

func subjectFromToken(raw, secret string) (string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("token has no subject")
	}

	return sub, nil
}

func ownerToken(c *gin.Context) string {
	return c.GetString(ownerKey)
}

// requireOwner answers 401 when the request carries no identity.
func requireOwner(c *gin.Context) (string, bool) {
	owner := ownerToken(c)
	if owner == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "bearer token or X-Session-ID required"})
		return "", false
	}
	return owner, true
}

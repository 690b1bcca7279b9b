package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/auth"
)

// AnonymousUser owns every request that carries no bearer token
const AnonymousUser = "local"

// Authenticate resolves the caller from a bearer token. Requests without a
// token run as AnonymousUser; a token that fails verification is rejected.
func Authenticate(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Set(IdentityKey, &auth.Identity{UserID: AnonymousUser})
			c.Next()
			return
		}

		id, err := issuer.Verify(token)
		if err != nil {
			LoggerFrom(c).Warn("rejected bearer token", zap.Error(err))
			msg := "invalid token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "token expired"
			}
			Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", msg)
			return
		}

		c.Set(IdentityKey, id)
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin claim
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		if id == nil || !id.Admin {
			Abort(c, http.StatusForbidden, "FORBIDDEN", "admin access required")
			return
		}
		c.Next()
	}
}

// GetIdentity returns the caller set by Authenticate
func GetIdentity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

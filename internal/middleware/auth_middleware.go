package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/Baaaki/devmarket/internal/utils"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// TokenCookie carries the session token for browser clients.
	TokenCookie = "token"

	claimsKey = "claims"
	userKey   = "user"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, s service.Session) (*models.User, error)
}

// AuthMiddleware validates the session token from the Authorization header
// or, failing that, the token cookie.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := utils.ValidateToken(tokenString, jwtSecret)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			return "", false
		}
		return token, true
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// IdentityMiddleware resolves the acting user from the verified claims. The
// role used for authorization always comes from the stored user.
func IdentityMiddleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}

		user, err := resolver.Resolve(c.Request.Context(), service.Session{
			UserID: claims.UserID,
			Email:  claims.Email,
			Name:   claims.Name,
		})
		if err != nil {
			if errors.Is(err, service.ErrIdentityUnresolved) {
				abort(c, http.StatusUnauthorized, service.ErrIdentityUnresolved.Error())
				return
			}
			logger.Log.Error("Identity resolution failed",
				zap.String("trace_id", TraceID(c)),
				zap.Error(err),
			)
			abort(c, http.StatusInternalServerError, "internal error, please try again later")
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !user.IsAdmin() {
			abort(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user set by IdentityMiddleware, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func CurrentClaims(c *gin.Context) *utils.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*utils.Claims)
	return claims
}

func abort(c *gin.Context, status int, message string) {
	body := gin.H{"error": message}
	if id := TraceID(c); id != "" {
		body["trace_id"] = id
	}
	c.AbortWithStatusJSON(status, body)
}

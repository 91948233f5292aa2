package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"

	"github.com/medsched/clinic-api/internal/handler"
	"github.com/medsched/clinic-api/internal/model"
	"github.com/medsched/clinic-api/internal/service/auth"
)

const identityCacheTTL = time.Minute

type AuthMiddleware struct {
	authService *auth.Service
	// token -> model.Identity, so hot sessions skip signature verification
	cache *gocache.Cache
}

func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		cache:       gocache.New(identityCacheTTL, 5*time.Minute),
	}
}

// Authenticate verifies the bearer token and stores the caller's identity
// in the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			c.Abort()
			return
		}
		token := parts[1]

		if cached, ok := m.cache.Get(token); ok {
			c.Set(handler.IdentityKey, cached.(model.Identity))
			c.Next()
			return
		}

		identity, err := m.authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		m.cache.Set(token, *identity, gocache.DefaultExpiration)
		c.Set(handler.IdentityKey, *identity)
		c.Next()
	}
}

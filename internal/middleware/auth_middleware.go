package middleware

import (
	"strconv"
	"strings"

	"osgb/internal/models"
	"osgb/internal/services"
	"osgb/pkg/jwt"
	"osgb/pkg/response"

	"github.com/gin-gonic/gin"
)

// TenantHeader lets a platform admin act on another tenant.
const TenantHeader = "X-Tenant-ID"

const authContextKey = "auth"

// AuthMiddleware resolves the bearer token into a user and an AuthContext.
type AuthMiddleware struct {
	userService *services.UserService
	jwtManager  *jwt.JWTManager
}

func NewAuthMiddleware(userService *services.UserService, jwtManager *jwt.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		userService: userService,
		jwtManager:  jwtManager,
	}
}

// RequireLogin rejects requests without a valid token for an active user.
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "login required")
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "malformed authorization header")
			c.Abort()
			return
		}

		claims, err := m.jwtManager.VerifyToken(authHeader[7:])
		if err != nil {
			response.Unauthorized(c, "token is invalid or expired")
			c.Abort()
			return
		}

		user, err := m.userService.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Unauthorized(c, "user not found")
			c.Abort()
			return
		}
		if !user.IsActive() {
			response.Unauthorized(c, "user is disabled")
			c.Abort()
			return
		}

		auth := services.AuthContext{
			UserID:          user.ID,
			TenantID:        user.TenantID,
			Role:            user.Role,
			IsPlatformAdmin: user.IsPlatformAdmin,
		}
		if override := c.GetHeader(TenantHeader); override != "" {
			if !user.IsPlatformAdmin {
				response.Forbidden(c, "only platform admins may switch tenant")
				c.Abort()
				return
			}
			tenantID, err := strconv.ParseUint(override, 10, 32)
			if err != nil || tenantID == 0 {
				response.BadRequest(c, "invalid "+TenantHeader)
				c.Abort()
				return
			}
			auth.TenantID = uint(tenantID)
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("tenant_id", auth.TenantID)
		c.Set("claims", claims)
		c.Set(authContextKey, auth)

		c.Next()
	}
}

// RequirePlatformAdmin must run after RequireLogin.
func (m *AuthMiddleware) RequirePlatformAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			response.Unauthorized(c, "login required")
			c.Abort()
			return
		}
		if !user.(*models.User).IsPlatformAdmin {
			response.Forbidden(c, "platform admin required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin allows tenant admins and platform admins.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			response.Unauthorized(c, "login required")
			c.Abort()
			return
		}
		u := user.(*models.User)
		if !u.IsPlatformAdmin && u.Role != models.UserRoleAdmin {
			response.Forbidden(c, "admin required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetAuthContext returns the caller identity set by RequireLogin. It is the
// zero value when the request was not authenticated.
func GetAuthContext(c *gin.Context) services.AuthContext {
	if v, ok := c.Get(authContextKey); ok {
		if auth, ok := v.(services.AuthContext); ok {
			return auth
		}
	}
	return services.AuthContext{}
}

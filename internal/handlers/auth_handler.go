package handlers

import (
	"time"

	"osgb/internal/services"
	"osgb/pkg/jwt"
	"osgb/pkg/logger"
	"osgb/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService *services.UserService
	jwtManager  *jwt.JWTManager
}

func NewAuthHandler(userService *services.UserService, jwtManager *jwt.JWTManager) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtManager:  jwtManager,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt int64    `json:"expires_at"`
	User      UserInfo `json:"user"`
}

type UserInfo struct {
	ID              uint   `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	Role            string `json:"role"`
	TenantID        uint   `json:"tenant_id"`
	TenantName      string `json:"tenant_name,omitempty"`
	IsPlatformAdmin bool   `json:"is_platform_admin"`
}

// Login exchanges credentials for a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch services.KindOf(err) {
		case services.KindPrecondition, services.KindPolicyViolation:
			response.Unauthorized(c, services.MessageOf(err))
		default:
			handleServiceError(c, err)
		}
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.TenantID, user.Username, user.Role, user.IsPlatformAdmin)
	if err != nil {
		response.ServerError(c, "failed to issue token")
		return
	}

	if err := h.userService.UpdateLastLogin(c.Request.Context(), user.ID); err != nil {
		logger.GetLogger().WithError(err).WithField("user_id", user.ID).Warn("Failed to record login time")
	}

	info := UserInfo{
		ID:              user.ID,
		Username:        user.Username,
		Name:            user.Name,
		Role:            user.Role,
		TenantID:        user.TenantID,
		IsPlatformAdmin: user.IsPlatformAdmin,
	}
	if user.Tenant != nil {
		info.TenantName = user.Tenant.Name
	}

	response.Success(c, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
		User:      info,
	})
}

// Me returns the caller and the tenant it is acting on.
func (h *AuthHandler) Me(c *gin.Context) {
	auth := authContext(c)
	user, err := h.userService.GetByID(c.Request.Context(), auth.UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	info := UserInfo{
		ID:              user.ID,
		Username:        user.Username,
		Name:            user.Name,
		Role:            user.Role,
		TenantID:        auth.TenantID,
		IsPlatformAdmin: user.IsPlatformAdmin,
	}
	if user.Tenant != nil && user.TenantID == auth.TenantID {
		info.TenantName = user.Tenant.Name
	}
	response.Success(c, info)
}

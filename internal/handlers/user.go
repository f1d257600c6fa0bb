package handlers

import (
	"osgb/internal/services"
	"osgb/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Create adds an operator. Under /tenants/:id/users the tenant comes from the
// path; otherwise the user joins the caller's tenant and cannot be a
// platform admin.
func (h *UserHandler) Create(c *gin.Context) {
	auth := authContext(c)
	tenantID := auth.TenantID
	fromPath := c.Param("id") != ""
	if fromPath {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		tenantID = id
	}

	var req services.CreateUserRequest
	req.TenantID = tenantID
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.TenantID = tenantID
	if !fromPath && !auth.IsPlatformAdmin {
		req.IsPlatformAdmin = false
	}

	user, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, user)
}

// GetByID returns a user of the caller's tenant.
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	user, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	auth := authContext(c)
	if user.TenantID != auth.TenantID && !auth.IsPlatformAdmin {
		response.NotFound(c, "user not found")
		return
	}
	response.Success(c, user)
}

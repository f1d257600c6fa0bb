package handlers

import (
	"osgb/internal/models"
	"osgb/internal/services"
	"osgb/pkg/pagination"
	"osgb/pkg/response"

	"github.com/gin-gonic/gin"
)

type TenantHandler struct {
	service *services.TenantService
}

func NewTenantHandler(service *services.TenantService) *TenantHandler {
	return &TenantHandler{
		service: service,
	}
}

// Create adds a tenant.
func (h *TenantHandler) Create(c *gin.Context) {
	var req models.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	tenant, err := h.service.Create(c.Request.Context(), req.Name, req.Code)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, tenant)
}

// GetByID returns one tenant.
func (h *TenantHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	tenant, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, tenant)
}

// List pages through tenants. Query: status, keyword, page, page_size.
func (h *TenantHandler) List(c *gin.Context) {
	params := pagination.ParsePageParams(c)
	tenants, total, err := h.service.List(c.Request.Context(), c.Query("status"), c.Query("keyword"), params)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, tenants, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

// Update renames a tenant or changes its status.
func (h *TenantHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	tenant, err := h.service.Update(c.Request.Context(), id, req.Name, req.Status)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, tenant)
}

// Delete removes a tenant without data.
func (h *TenantHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SuccessWithMessage(c, "deleted", nil)
}

// Stats counts tenants by status.
func (h *TenantHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, stats)
}

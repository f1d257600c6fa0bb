package handlers

import (
	"osgb/internal/models"
	"osgb/internal/services"
	"osgb/pkg/cache"
	"osgb/pkg/pagination"
	"osgb/pkg/response"

	"github.com/gin-gonic/gin"
)

type WorkplaceHandler struct {
	service *services.WorkplaceService
	cache   *entityCache
}

func NewWorkplaceHandler(service *services.WorkplaceService, backend *cache.RedisCache) *WorkplaceHandler {
	return &WorkplaceHandler{
		service: service,
		cache:   newEntityCache(backend),
	}
}

func (h *WorkplaceHandler) Create(c *gin.Context) {
	var req models.CreateWorkplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	auth := authContext(c)
	result, err := h.service.Create(c.Request.Context(), auth, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.cache.invalidateMovements(c.Request.Context(), auth.TenantID, result)
	response.Success(c, result)
}

func (h *WorkplaceHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	auth := authContext(c)

	var cached models.Workplace
	if h.cache.get(c.Request.Context(), cacheKindWorkplace, auth.TenantID, id, &cached) {
		response.Success(c, &cached)
		return
	}

	workplace, err := h.service.Get(c.Request.Context(), auth, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.cache.set(c.Request.Context(), cacheKindWorkplace, auth.TenantID, id, workplace)
	response.Success(c, workplace)
}

// List pages through workplaces. Query: approval_status, hazard_tier,
// expert_id, keyword, page, page_size.
func (h *WorkplaceHandler) List(c *gin.Context) {
	var filter models.WorkplaceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "invalid filter: "+err.Error())
		return
	}
	params := pagination.ParsePageParams(c)

	workplaces, total, err := h.service.List(c.Request.Context(), authContext(c), &filter, params)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if workplaces == nil {
		workplaces = []models.Workplace{}
	}
	response.SuccessWithPage(c, workplaces, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

// Update edits a workplace and returns the ledger movements it caused.
func (h *WorkplaceHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateWorkplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	auth := authContext(c)
	result, err := h.service.Update(c.Request.Context(), auth, id, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.cache.invalidateMovements(c.Request.Context(), auth.TenantID, result)
	response.Success(c, result)
}

func (h *WorkplaceHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	auth := authContext(c)
	result, err := h.service.Delete(c.Request.Context(), auth, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.cache.invalidateMovements(c.Request.Context(), auth.TenantID, result)
	response.Success(c, result)
}

package handlers

import (
	"osgb/internal/models"
	"osgb/internal/services"
	"osgb/pkg/pagination"
	"osgb/pkg/response"

	"github.com/gin-gonic/gin"
)

type VisitHandler struct {
	service *services.VisitService
}

func NewVisitHandler(service *services.VisitService) *VisitHandler {
	return &VisitHandler{service: service}
}

// Record upserts the visit flag for (expert, workplace, month).
func (h *VisitHandler) Record(c *gin.Context) {
	var req models.RecordVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	record, err := h.service.RecordVisit(c.Request.Context(), authContext(c), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, record)
}

// List pages through visit records. Query: expert_id, workplace_id, month.
func (h *VisitHandler) List(c *gin.Context) {
	var filter models.VisitFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "invalid filter: "+err.Error())
		return
	}
	params := pagination.ParsePageParams(c)

	records, total, err := h.service.List(c.Request.Context(), authContext(c), &filter, params)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if records == nil {
		records = []models.VisitRecord{}
	}
	response.SuccessWithPage(c, records, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

func (h *VisitHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteVisit(c.Request.Context(), authContext(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SuccessWithMessage(c, "deleted", nil)
}

// Summary groups an expert's visits by workplace and month.
func (h *VisitHandler) Summary(c *gin.Context) {
	expertID, ok := parseIDParam(c, "expert_id")
	if !ok {
		return
	}
	summary, err := h.service.VisitSummary(c.Request.Context(), authContext(c), expertID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, summary)
}

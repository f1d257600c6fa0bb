package handlers

import (
	"osgb/internal/models"
	"osgb/internal/services"
	"osgb/pkg/cache"
	"osgb/pkg/pagination"
	"osgb/pkg/response"

	"github.com/gin-gonic/gin"
)

// PersonnelHandler serves the three personnel registries under
// /personnel/:role.
type PersonnelHandler struct {
	service *services.PersonnelService
	ledger  *services.QuotaLedger
	cache   *entityCache
}

func NewPersonnelHandler(service *services.PersonnelService, ledger *services.QuotaLedger, backend *cache.RedisCache) *PersonnelHandler {
	return &PersonnelHandler{
		service: service,
		ledger:  ledger,
		cache:   newEntityCache(backend),
	}
}

func parseRole(c *gin.Context) (models.PersonnelRole, bool) {
	role := models.PersonnelRole(c.Param("role"))
	if !role.Valid() {
		response.NotFound(c, "unknown personnel role")
		return "", false
	}
	return role, true
}

func (h *PersonnelHandler) Create(c *gin.Context) {
	role, ok := parseRole(c)
	if !ok {
		return
	}
	var req models.CreatePersonnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	account, err := h.service.Create(c.Request.Context(), authContext(c), role, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, account)
}

func (h *PersonnelHandler) GetByID(c *gin.Context) {
	role, ok := parseRole(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	auth := authContext(c)

	cached, err := models.NewPersonnelAccount(role)
	if err == nil && h.cache.get(c.Request.Context(), string(role), auth.TenantID, id, cached) {
		response.Success(c, cached)
		return
	}

	account, err := h.service.Get(c.Request.Context(), auth, role, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.cache.set(c.Request.Context(), string(role), auth.TenantID, id, account)
	response.Success(c, account)
}

// List pages through accounts. Query: keyword, page, page_size.
func (h *PersonnelHandler) List(c *gin.Context) {
	role, ok := parseRole(c)
	if !ok {
		return
	}
	params := pagination.ParsePageParams(c)
	accounts, total, err := h.service.List(c.Request.Context(), authContext(c), role, c.Query("keyword"), params)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if accounts == nil {
		accounts = []models.PersonnelAccount{}
	}
	response.SuccessWithPage(c, accounts, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

func (h *PersonnelHandler) Update(c *gin.Context) {
	role, ok := parseRole(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdatePersonnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	auth := authContext(c)
	account, err := h.service.Update(c.Request.Context(), auth, role, id, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.cache.invalidate(c.Request.Context(), string(role), auth.TenantID, id)
	response.Success(c, account)
}

func (h *PersonnelHandler) Delete(c *gin.Context) {
	role, ok := parseRole(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	auth := authContext(c)
	if err := h.service.Delete(c.Request.Context(), auth, role, id); err != nil {
		handleServiceError(c, err)
		return
	}
	h.cache.invalidate(c.Request.Context(), string(role), auth.TenantID, id)
	response.SuccessWithMessage(c, "deleted", nil)
}

// Ledger returns the quota journal of one account.
func (h *PersonnelHandler) Ledger(c *gin.Context) {
	role, ok := parseRole(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	auth := authContext(c)
	if _, err := h.service.Get(c.Request.Context(), auth, role, id); err != nil {
		handleServiceError(c, err)
		return
	}
	entries, err := h.ledger.History(c.Request.Context(), auth, role, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if entries == nil {
		entries = []models.QuotaLedgerEntry{}
	}
	response.Success(c, entries)
}

// CanDowngrade reports whether an expert may move to ?class=.
func (h *PersonnelHandler) CanDowngrade(c *gin.Context) {
	role, ok := parseRole(c)
	if !ok {
		return
	}
	if role != models.RoleExpert {
		response.BadRequest(c, "expertise class only applies to experts")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	class := models.ExpertClass(c.Query("class"))

	allowed, err := h.service.CanDowngradeExpertClass(c.Request.Context(), authContext(c), id, class)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"expert_id": id,
		"class":     class,
		"allowed":   allowed,
	})
}

// Overcommitted lists the tenant's accounts with a negative balance.
func (h *PersonnelHandler) Overcommitted(c *gin.Context) {
	accounts, err := h.service.Overcommitted(c.Request.Context(), authContext(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if accounts == nil {
		accounts = []services.OvercommittedAccount{}
	}
	response.Success(c, accounts)
}

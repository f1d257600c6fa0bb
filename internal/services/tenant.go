package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"osgb/internal/models"
	"osgb/pkg/logger"
	"osgb/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type TenantService struct {
	db  *gorm.DB
	log *logrus.Logger
}

// TenantStats counts tenants per status.
type TenantStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

func NewTenantService(db *gorm.DB) *TenantService {
	return &TenantService{db: db, log: logger.GetLogger()}
}

// List pages through tenants, optionally filtered by status and keyword.
func (s *TenantService) List(ctx context.Context, status, keyword string, page *pagination.PageParams) ([]*models.Tenant, int64, error) {
	var tenants []*models.Tenant
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Tenant{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR code LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internalError("count tenants", err)
	}
	if err := query.Scopes(page.Scope()).Order("id ASC").Find(&tenants).Error; err != nil {
		return nil, 0, internalError("list tenants", err)
	}
	return tenants, total, nil
}

// Create adds an active tenant. Codes are unique.
func (s *TenantService) Create(ctx context.Context, name, code string) (*models.Tenant, error) {
	name, code = strings.TrimSpace(name), strings.TrimSpace(code)
	if err := validateTenantParams(name, code); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.Tenant{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return nil, internalError("check tenant code", err)
	}
	if count > 0 {
		return nil, conflictf("tenant code %q already exists", code)
	}

	tenant := &models.Tenant{Name: name, Code: code, Status: models.TenantStatusActive}
	if err := db.Create(tenant).Error; err != nil {
		return nil, internalError("create tenant", err)
	}

	s.log.WithFields(logrus.Fields{"tenant_id": tenant.ID, "code": code}).Info("Tenant created")
	return tenant, nil
}

// GetByID loads one tenant.
func (s *TenantService) GetByID(ctx context.Context, id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).First(&tenant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("tenant %d not found", id)
	}
	if err != nil {
		return nil, internalError("load tenant", err)
	}
	return &tenant, nil
}

// GetByCode loads one tenant by its unique code.
func (s *TenantService) GetByCode(ctx context.Context, code string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("tenant %q not found", code)
	}
	if err != nil {
		return nil, internalError("load tenant", err)
	}
	return &tenant, nil
}

// Update renames a tenant and sets its status.
func (s *TenantService) Update(ctx context.Context, id uint, name, status string) (*models.Tenant, error) {
	tenant, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return nil, preconditionf("tenant name must be 1-100 characters")
	}
	if status != models.TenantStatusActive && status != models.TenantStatusInactive {
		return nil, preconditionf("invalid tenant status %q", status)
	}

	tenant.Name = name
	tenant.Status = status
	if err := s.db.WithContext(ctx).Save(tenant).Error; err != nil {
		return nil, internalError("update tenant", err)
	}
	return tenant, nil
}

// Delete removes a tenant that no longer owns any data.
func (s *TenantService) Delete(ctx context.Context, id uint) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	db := s.db.WithContext(ctx)
	owned := []interface{}{
		&models.User{}, &models.Expert{}, &models.Physician{},
		&models.SafetyOfficer{}, &models.Workplace{},
	}
	for _, model := range owned {
		var count int64
		if err := db.Model(model).Where("tenant_id = ?", id).Count(&count).Error; err != nil {
			return internalError("check tenant data", err)
		}
		if count > 0 {
			return conflictf("tenant %d still owns data", id)
		}
	}
	if err := db.Delete(&models.Tenant{}, id).Error; err != nil {
		return internalError("delete tenant", err)
	}
	return nil
}

// GetStats counts tenants by status.
func (s *TenantService) GetStats(ctx context.Context) (*TenantStats, error) {
	stats := &TenantStats{}
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Tenant{}).Count(&stats.Total).Error; err != nil {
		return nil, internalError("count tenants", err)
	}
	if err := db.Model(&models.Tenant{}).Where("status = ?", models.TenantStatusActive).Count(&stats.Active).Error; err != nil {
		return nil, internalError("count tenants", err)
	}
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

func validateTenantParams(name, code string) error {
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return preconditionf("tenant name must be 1-100 characters")
	}
	if code == "" || len(code) > 50 {
		return preconditionf("tenant code must be 1-50 characters")
	}
	for _, r := range code {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return preconditionf("tenant code may only contain letters, digits, '_' and '-'")
		}
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"osgb/internal/models"
	"osgb/pkg/logger"
	"osgb/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultMinuteCeiling is the monthly quota an account may be given directly.
const DefaultMinuteCeiling = 11900

// PersonnelService manages expert, physician and safety officer accounts.
type PersonnelService struct {
	db      *gorm.DB
	ceiling int
	log     *logrus.Logger
}

// OvercommittedAccount is an account whose quota went below zero.
type OvercommittedAccount struct {
	TenantID        uint                 `json:"tenant_id"`
	Role            models.PersonnelRole `json:"role"`
	ID              uint                 `json:"id"`
	FirstName       string               `json:"first_name"`
	LastName        string               `json:"last_name"`
	AssignedMinutes int                  `json:"assigned_minutes"`
}

// NewPersonnelService builds the service. A non-positive ceiling falls back to
// DefaultMinuteCeiling.
func NewPersonnelService(db *gorm.DB, ceiling int) *PersonnelService {
	if ceiling <= 0 {
		ceiling = DefaultMinuteCeiling
	}
	return &PersonnelService{db: db, ceiling: ceiling, log: logger.GetLogger()}
}

// Ceiling returns the configured minute ceiling.
func (s *PersonnelService) Ceiling() int {
	return s.ceiling
}

func (s *PersonnelService) validateMinutes(minutes int) error {
	if minutes > s.ceiling {
		return preconditionf("assigned minutes %d exceed the ceiling of %d", minutes, s.ceiling)
	}
	if minutes < 0 {
		return preconditionf("assigned minutes cannot be negative")
	}
	return nil
}

// Create adds an account of role to the caller's tenant.
func (s *PersonnelService) Create(ctx context.Context, auth AuthContext, role models.PersonnelRole, req *models.CreatePersonnelRequest) (models.PersonnelAccount, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	account, err := models.NewPersonnelAccount(role)
	if err != nil {
		return nil, preconditionf("%v", err)
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return nil, preconditionf("first and last name are required")
	}

	minutes := s.ceiling
	if req.AssignedMinutes != nil {
		minutes = *req.AssignedMinutes
	}
	if err := s.validateMinutes(minutes); err != nil {
		return nil, err
	}

	base := account.Account()
	base.TenantID = auth.TenantID
	base.FirstName = strings.TrimSpace(req.FirstName)
	base.LastName = strings.TrimSpace(req.LastName)
	base.Phone = req.Phone
	base.AssignedMinutes = minutes

	if expert, ok := account.(*models.Expert); ok && req.ExpertiseClass != "" {
		if !req.ExpertiseClass.Valid() {
			return nil, preconditionf("invalid expertise class %q", req.ExpertiseClass)
		}
		expert.ExpertiseClass = req.ExpertiseClass
	}

	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, internalError("create personnel", err)
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":    auth.TenantID,
		"role":         role,
		"personnel_id": base.ID,
	}).Info("Personnel account created")
	return account, nil
}

// Get loads one account of the caller's tenant.
func (s *PersonnelService) Get(ctx context.Context, auth AuthContext, role models.PersonnelRole, id uint) (models.PersonnelAccount, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	account, err := models.NewPersonnelAccount(role)
	if err != nil {
		return nil, preconditionf("%v", err)
	}
	err = s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, auth.TenantID).First(account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("%s %d not found", role, id)
	}
	if err != nil {
		return nil, internalError("load personnel", err)
	}
	return account, nil
}

// List pages through the tenant's accounts of role.
func (s *PersonnelService) List(ctx context.Context, auth AuthContext, role models.PersonnelRole, keyword string, page *pagination.PageParams) ([]models.PersonnelAccount, int64, error) {
	if err := auth.Validate(); err != nil {
		return nil, 0, err
	}
	if !role.Valid() {
		return nil, 0, preconditionf("unknown personnel role %q", role)
	}

	query := s.db.WithContext(ctx).Table(role.Table()).Where("tenant_id = ?", auth.TenantID)
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("first_name LIKE ? OR last_name LIKE ?", searchPattern, searchPattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internalError("count personnel", err)
	}

	accounts, err := findAccounts(query.Scopes(page.Scope()).Order("id ASC"), role)
	if err != nil {
		return nil, 0, internalError("list personnel", err)
	}
	return accounts, total, nil
}

// Update edits names, phone, minutes and, for experts, the expertise class.
// A class change that would strand an existing assignment is rejected.
func (s *PersonnelService) Update(ctx context.Context, auth AuthContext, role models.PersonnelRole, id uint, req *models.UpdatePersonnelRequest) (models.PersonnelAccount, error) {
	account, err := s.Get(ctx, auth, role, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		if strings.TrimSpace(*req.FirstName) == "" {
			return nil, preconditionf("first name cannot be empty")
		}
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		if strings.TrimSpace(*req.LastName) == "" {
			return nil, preconditionf("last name cannot be empty")
		}
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.AssignedMinutes != nil {
		if err := s.validateMinutes(*req.AssignedMinutes); err != nil {
			return nil, err
		}
		updates["assigned_minutes"] = *req.AssignedMinutes
	}
	var proposed *models.ExpertClass
	if req.ExpertiseClass != nil {
		expert, ok := account.(*models.Expert)
		if !ok {
			return nil, preconditionf("expertise class only applies to experts")
		}
		if !req.ExpertiseClass.Valid() {
			return nil, preconditionf("invalid expertise class %q", *req.ExpertiseClass)
		}
		if *req.ExpertiseClass != expert.ExpertiseClass {
			proposed = req.ExpertiseClass
			updates["expertise_class"] = *req.ExpertiseClass
		}
	}

	if len(updates) == 0 {
		return account, nil
	}
	updates["updated_at"] = time.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if proposed != nil {
			// the expert row lock serializes this check with workplace assignments
			expert, err := lockExpert(tx, auth.TenantID, id)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("%s %d not found", role, id)
			}
			if err != nil {
				return err
			}
			allowed, err := s.canDowngrade(tx, auth.TenantID, expert, *proposed)
			if err != nil {
				return err
			}
			if !allowed {
				return policyViolationf("expert %d has workplaces that class %s may not serve", id, *proposed)
			}
		}

		// column-level update so a concurrent ledger movement is not overwritten
		return tx.Table(role.Table()).
			Where("id = ? AND tenant_id = ?", id, auth.TenantID).
			Updates(updates).Error
	})
	if err != nil {
		return nil, internalError("update personnel", err)
	}

	return s.Get(ctx, auth, role, id)
}

// Delete removes an account. Workplaces keep their reference and no quota is
// moved.
func (s *PersonnelService) Delete(ctx context.Context, auth AuthContext, role models.PersonnelRole, id uint) error {
	account, err := s.Get(ctx, auth, role, id)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, auth.TenantID).Delete(account)
	if result.Error != nil {
		return internalError("delete personnel", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundf("%s %d not found", role, id)
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":    auth.TenantID,
		"role":         role,
		"personnel_id": id,
	}).Info("Personnel account deleted")
	return nil
}

// CanDowngradeExpertClass reports whether the expert may move to proposed
// without leaving a workplace of a tier the new class cannot serve. Moving to
// a class that is not more restrictive is always allowed.
func (s *PersonnelService) CanDowngradeExpertClass(ctx context.Context, auth AuthContext, expertID uint, proposed models.ExpertClass) (bool, error) {
	if !proposed.Valid() {
		return false, preconditionf("invalid expertise class %q", proposed)
	}
	account, err := s.Get(ctx, auth, models.RoleExpert, expertID)
	if err != nil {
		return false, err
	}
	return s.canDowngrade(s.db.WithContext(ctx), auth.TenantID, account.(*models.Expert), proposed)
}

func (s *PersonnelService) canDowngrade(db *gorm.DB, tenantID uint, expert *models.Expert, proposed models.ExpertClass) (bool, error) {
	if proposed == models.ExpertClassA || !MoreRestrictive(proposed, expert.ExpertiseClass) {
		return true, nil
	}

	// any approval state counts
	var count int64
	err := db.Model(&models.Workplace{}).
		Where("tenant_id = ? AND expert_id = ?", tenantID, expert.ID).
		Where("hazard_tier NOT IN ?", AllowedTiers(proposed)).
		Count(&count).Error
	if err != nil {
		return false, internalError("check expert workplaces", err)
	}
	return count == 0, nil
}

// Overcommitted lists the tenant's accounts whose quota is below zero.
func (s *PersonnelService) Overcommitted(ctx context.Context, auth AuthContext) ([]OvercommittedAccount, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	tenantID := auth.TenantID
	return findOvercommitted(s.db.WithContext(ctx), &tenantID)
}

// findOvercommitted scans every role; a nil tenant scans all tenants.
func findOvercommitted(db *gorm.DB, tenantID *uint) ([]OvercommittedAccount, error) {
	var result []OvercommittedAccount
	for _, role := range models.AssignableRoles {
		var rows []models.Personnel
		query := db.Table(role.Table()).Where("assigned_minutes < 0")
		if tenantID != nil {
			query = query.Where("tenant_id = ?", *tenantID)
		}
		if err := query.Order("assigned_minutes ASC").Find(&rows).Error; err != nil {
			return nil, internalError("find overcommitted personnel", err)
		}
		for _, row := range rows {
			result = append(result, OvercommittedAccount{
				TenantID:        row.TenantID,
				Role:            role,
				ID:              row.ID,
				FirstName:       row.FirstName,
				LastName:        row.LastName,
				AssignedMinutes: row.AssignedMinutes,
			})
		}
	}
	return result, nil
}

func findAccounts(query *gorm.DB, role models.PersonnelRole) ([]models.PersonnelAccount, error) {
	var accounts []models.PersonnelAccount
	switch role {
	case models.RoleExpert:
		var rows []models.Expert
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			accounts = append(accounts, &rows[i])
		}
	case models.RolePhysician:
		var rows []models.Physician
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			accounts = append(accounts, &rows[i])
		}
	case models.RoleSafetyOfficer:
		var rows []models.SafetyOfficer
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			accounts = append(accounts, &rows[i])
		}
	default:
		return nil, fmt.Errorf("unknown personnel role %q", role)
	}
	return accounts, nil
}

// lockExpert loads an expert row for update. SQLite ignores the lock and
// serializes whole write transactions instead.
func lockExpert(tx *gorm.DB, tenantID, id uint) (*models.Expert, error) {
	var expert models.Expert
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&expert).Error
	if err != nil {
		return nil, err
	}
	return &expert, nil
}

// personnelInTenant reports whether id is an account of role in tenantID.
func personnelInTenant(db *gorm.DB, role models.PersonnelRole, id, tenantID uint) (bool, error) {
	var count int64
	err := db.Table(role.Table()).Where("id = ? AND tenant_id = ?", id, tenantID).Count(&count).Error
	return count > 0, err
}

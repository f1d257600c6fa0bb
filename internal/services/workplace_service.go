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
)

// WorkplaceService drives the approval workflow of workplaces and the quota
// movements it triggers.
type WorkplaceService struct {
	db     *gorm.DB
	ledger *QuotaLedger
	log    *logrus.Logger
}

// LedgerMovement is one applied or attempted quota change. Delta is negative
// for a debit.
type LedgerMovement struct {
	Role        models.PersonnelRole `json:"role"`
	PersonnelID uint                 `json:"personnel_id"`
	Delta       int                  `json:"delta"`
}

// TransitionResult is returned by every workplace write.
type TransitionResult struct {
	Workplace *models.Workplace     `json:"workplace"`
	From      models.ApprovalStatus `json:"from,omitempty"`
	To        models.ApprovalStatus `json:"to"`
	Movements []LedgerMovement      `json:"movements"`
}

func NewWorkplaceService(db *gorm.DB, ledger *QuotaLedger) *WorkplaceService {
	if ledger == nil {
		ledger = NewQuotaLedger(db)
	}
	return &WorkplaceService{db: db, ledger: ledger, log: logger.GetLogger()}
}

// Create adds a workplace. Creating it directly as approved debits quota.
func (s *WorkplaceService) Create(ctx context.Context, auth AuthContext, req *models.CreateWorkplaceRequest) (*TransitionResult, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, preconditionf("name is required")
	}
	if err := validateTierAndHeadcount(req.HazardTier, req.Headcount); err != nil {
		return nil, err
	}
	status := req.ApprovalStatus
	if status == "" {
		status = models.StatusAssignment
	}
	if !status.Valid() {
		return nil, preconditionf("invalid approval status %q", status)
	}

	w := &models.Workplace{
		TenantID:         auth.TenantID,
		Name:             strings.TrimSpace(req.Name),
		Address:          req.Address,
		HazardTier:       req.HazardTier,
		Headcount:        req.Headcount,
		ExpertID:         nilIfZero(req.ExpertID),
		PhysicianID:      nilIfZero(req.PhysicianID),
		SafetyOfficerID:  nilIfZero(req.SafetyOfficerID),
		TrackingExpertID: nilIfZero(req.TrackingExpertID),
		ApprovalStatus:   status,
	}

	db := s.db.WithContext(ctx)
	if err := s.validateReferences(db, auth.TenantID, w.ExpertID, w.PhysicianID, w.SafetyOfficerID, w.TrackingExpertID); err != nil {
		return nil, err
	}

	var charges []models.QuotaCharge
	if status == models.StatusApproved {
		charges = ComputeCharges(w)
		w.SetCharges(charges)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := s.checkExpertClass(tx, auth.TenantID, w.ExpertID, w.HazardTier); err != nil {
			return err
		}
		if err := tx.Create(w).Error; err != nil {
			return err
		}
		for _, charge := range charges {
			if err := s.ledger.Debit(tx, auth.TenantID, w.ID, charge, models.LedgerReasonApprove); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, internalError("create workplace", err)
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":    auth.TenantID,
		"workplace_id": w.ID,
		"status":       status,
		"charges":      len(charges),
	}).Info("Workplace created")

	return &TransitionResult{
		Workplace: w,
		To:        status,
		Movements: movements(charges, -1),
	}, nil
}

// Get loads one workplace of the caller's tenant.
func (s *WorkplaceService) Get(ctx context.Context, auth AuthContext, id uint) (*models.Workplace, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	return s.load(s.db.WithContext(ctx), auth.TenantID, id)
}

// List pages through the tenant's workplaces.
func (s *WorkplaceService) List(ctx context.Context, auth AuthContext, filter *models.WorkplaceFilter, page *pagination.PageParams) ([]models.Workplace, int64, error) {
	if err := auth.Validate(); err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Model(&models.Workplace{}).Where("tenant_id = ?", auth.TenantID)
	if filter != nil {
		if filter.ApprovalStatus != "" {
			query = query.Where("approval_status = ?", filter.ApprovalStatus)
		}
		if filter.HazardTier != "" {
			query = query.Where("hazard_tier = ?", filter.HazardTier)
		}
		if filter.ExpertID != 0 {
			query = query.Where("expert_id = ? OR tracking_expert_id = ?", filter.ExpertID, filter.ExpertID)
		}
		if filter.Keyword != "" {
			query = query.Where("name LIKE ?", fmt.Sprintf("%%%s%%", filter.Keyword))
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internalError("count workplaces", err)
	}

	var workplaces []models.Workplace
	if err := query.Scopes(page.Scope()).Order("id DESC").Find(&workplaces).Error; err != nil {
		return nil, 0, internalError("list workplaces", err)
	}
	return workplaces, total, nil
}

// Update applies a partial edit. Crossing into approved debits the computed
// charges and stores them; crossing out of approved credits the stored
// charges. Edits that stay inside approved move no quota.
func (s *WorkplaceService) Update(ctx context.Context, auth AuthContext, id uint, req *models.UpdateWorkplaceRequest) (*TransitionResult, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, preconditionf("name cannot be empty")
	}
	if req.Headcount != nil && *req.Headcount <= 0 {
		return nil, preconditionf("headcount must be a positive integer")
	}
	if req.HazardTier != nil && !req.HazardTier.Valid() {
		return nil, preconditionf("invalid hazard tier %q", *req.HazardTier)
	}
	if req.ApprovalStatus != nil && !req.ApprovalStatus.Valid() {
		return nil, preconditionf("invalid approval status %q", *req.ApprovalStatus)
	}

	db := s.db.WithContext(ctx)
	current, err := s.load(db, auth.TenantID, id)
	if err != nil {
		return nil, err
	}

	// references named in the payload, checked before anything is written
	if err := s.validateReferences(db, auth.TenantID,
		nilIfZero(req.ExpertID), nilIfZero(req.PhysicianID),
		nilIfZero(req.SafetyOfficerID), nilIfZero(req.TrackingExpertID)); err != nil {
		return nil, err
	}

	next := *current
	applyWorkplaceUpdate(&next, req)

	tierChanged := next.HazardTier != current.HazardTier
	expertChanged := !sameRef(next.ExpertID, current.ExpertID)

	from, to := current.ApprovalStatus, next.ApprovalStatus
	var (
		debits  []models.QuotaCharge
		credits []models.QuotaCharge
	)
	switch {
	case from != models.StatusApproved && to == models.StatusApproved:
		debits = ComputeCharges(&next)
		next.SetCharges(debits)
	case from == models.StatusApproved && to != models.StatusApproved:
		credits = current.Charges()
		next.SetCharges(nil)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if tierChanged || expertChanged {
			if err := s.checkExpertClass(tx, auth.TenantID, next.ExpertID, next.HazardTier); err != nil {
				return err
			}
		}
		result := tx.Model(&models.Workplace{}).
			Where("id = ? AND tenant_id = ? AND approval_status = ?", id, auth.TenantID, from).
			Updates(map[string]interface{}{
				"name":               next.Name,
				"address":            next.Address,
				"hazard_tier":        next.HazardTier,
				"headcount":          next.Headcount,
				"expert_id":          next.ExpertID,
				"physician_id":       next.PhysicianID,
				"safety_officer_id":  next.SafetyOfficerID,
				"tracking_expert_id": next.TrackingExpertID,
				"approval_status":    next.ApprovalStatus,
				"quota_charges":      next.QuotaCharges,
				"updated_at":         time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return conflictf("workplace %d changed state concurrently, retry the update", id)
		}

		for _, charge := range debits {
			if err := s.ledger.Debit(tx, auth.TenantID, id, charge, models.LedgerReasonApprove); err != nil {
				return err
			}
		}
		for _, charge := range credits {
			if err := s.ledger.Credit(tx, auth.TenantID, id, charge, models.LedgerReasonRevoke); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, internalError("update workplace", err)
	}

	updated, err := s.load(db, auth.TenantID, id)
	if err != nil {
		return nil, err
	}

	if from != to {
		s.log.WithFields(logrus.Fields{
			"tenant_id":    auth.TenantID,
			"workplace_id": id,
			"from":         from,
			"to":           to,
			"debits":       len(debits),
			"credits":      len(credits),
		}).Info("Workplace approval status changed")
	}

	return &TransitionResult{
		Workplace: updated,
		From:      from,
		To:        to,
		Movements: append(movements(debits, -1), movements(credits, 1)...),
	}, nil
}

// Delete removes a workplace. An approved workplace releases its stored
// charges in the same transaction.
func (s *WorkplaceService) Delete(ctx context.Context, auth AuthContext, id uint) (*TransitionResult, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	current, err := s.load(db, auth.TenantID, id)
	if err != nil {
		return nil, err
	}

	var credits []models.QuotaCharge
	if current.ApprovalStatus == models.StatusApproved {
		credits = current.Charges()
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND tenant_id = ? AND approval_status = ?", id, auth.TenantID, current.ApprovalStatus).
			Delete(&models.Workplace{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return conflictf("workplace %d changed state concurrently, retry the delete", id)
		}
		for _, charge := range credits {
			if err := s.ledger.Credit(tx, auth.TenantID, id, charge, models.LedgerReasonDelete); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, internalError("delete workplace", err)
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":    auth.TenantID,
		"workplace_id": id,
		"credits":      len(credits),
	}).Info("Workplace deleted")

	return &TransitionResult{
		Workplace: current,
		From:      current.ApprovalStatus,
		To:        current.ApprovalStatus,
		Movements: movements(credits, 1),
	}, nil
}

func (s *WorkplaceService) load(db *gorm.DB, tenantID, id uint) (*models.Workplace, error) {
	var w models.Workplace
	err := db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("workplace %d not found", id)
	}
	if err != nil {
		return nil, internalError("load workplace", err)
	}
	return &w, nil
}

// validateReferences checks that every non-nil personnel id belongs to
// tenantID. The tracking expert is an expert account.
func (s *WorkplaceService) validateReferences(db *gorm.DB, tenantID uint, expertID, physicianID, safetyOfficerID, trackingExpertID *uint) error {
	refs := []struct {
		role  models.PersonnelRole
		id    *uint
		label string
	}{
		{models.RoleExpert, expertID, "expert"},
		{models.RolePhysician, physicianID, "physician"},
		{models.RoleSafetyOfficer, safetyOfficerID, "safety officer"},
		{models.RoleExpert, trackingExpertID, "tracking expert"},
	}
	for _, ref := range refs {
		if ref.id == nil {
			continue
		}
		ok, err := personnelInTenant(db, ref.role, *ref.id, tenantID)
		if err != nil {
			return internalError("check "+ref.label, err)
		}
		if !ok {
			return referenceViolationf("%s %d does not belong to this tenant", ref.label, *ref.id)
		}
	}
	return nil
}

// checkExpertClass rejects an expert whose class may not serve tier. The
// expert row stays locked until tx commits.
func (s *WorkplaceService) checkExpertClass(tx *gorm.DB, tenantID uint, expertID *uint, tier models.HazardTier) error {
	if expertID == nil {
		return nil
	}
	expert, err := lockExpert(tx, tenantID, *expertID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return referenceViolationf("expert %d does not belong to this tenant", *expertID)
	}
	if err != nil {
		return internalError("load expert", err)
	}
	if !ClassCanServe(expert.ExpertiseClass, tier) {
		return policyViolationf("class %s expert %d may not serve a %s workplace", expert.ExpertiseClass, expert.ID, tier)
	}
	return nil
}

func applyWorkplaceUpdate(w *models.Workplace, req *models.UpdateWorkplaceRequest) {
	if req.Name != nil {
		w.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		w.Address = *req.Address
	}
	if req.HazardTier != nil {
		w.HazardTier = *req.HazardTier
	}
	if req.Headcount != nil {
		w.Headcount = *req.Headcount
	}
	if id := nilIfZero(req.ExpertID); id != nil {
		w.ExpertID = id
	}
	if id := nilIfZero(req.PhysicianID); id != nil {
		w.PhysicianID = id
	}
	if id := nilIfZero(req.SafetyOfficerID); id != nil {
		w.SafetyOfficerID = id
	}
	if id := nilIfZero(req.TrackingExpertID); id != nil {
		w.TrackingExpertID = id
	}
	if req.ClearExpert {
		w.ExpertID = nil
	}
	if req.ClearPhysician {
		w.PhysicianID = nil
	}
	if req.ClearSafetyOfficer {
		w.SafetyOfficerID = nil
	}
	if req.ClearTrackingExpert {
		w.TrackingExpertID = nil
	}
	if req.ApprovalStatus != nil {
		w.ApprovalStatus = *req.ApprovalStatus
	}
}

func validateTierAndHeadcount(tier models.HazardTier, headcount int) error {
	if !tier.Valid() {
		return preconditionf("invalid hazard tier %q", tier)
	}
	if headcount <= 0 {
		return preconditionf("headcount must be a positive integer")
	}
	return nil
}

func movements(charges []models.QuotaCharge, sign int) []LedgerMovement {
	out := make([]LedgerMovement, 0, len(charges))
	for _, c := range charges {
		out = append(out, LedgerMovement{Role: c.Role, PersonnelID: c.PersonnelID, Delta: sign * c.Minutes})
	}
	return out
}

func nilIfZero(id *uint) *uint {
	if id == nil || *id == 0 {
		return nil
	}
	v := *id
	return &v
}

func sameRef(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

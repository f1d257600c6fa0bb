package services

import (
	"context"
	"errors"
	"time"

	"osgb/internal/models"
	"osgb/pkg/logger"
	"osgb/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MonthLayout is the visit month token format.
const MonthLayout = "2006-01"

// VisitService records monthly expert visits. It never touches the quota
// ledger.
type VisitService struct {
	db        *gorm.DB
	publisher EventPublisher
	log       *logrus.Logger
}

func NewVisitService(db *gorm.DB, publisher EventPublisher) *VisitService {
	if publisher == nil {
		publisher = NopEventPublisher{}
	}
	return &VisitService{db: db, publisher: publisher, log: logger.GetLogger()}
}

// ValidMonth reports whether month is a YYYY-MM token.
func ValidMonth(month string) bool {
	if len(month) != len(MonthLayout) {
		return false
	}
	_, err := time.Parse(MonthLayout, month)
	return err == nil
}

// RecordVisit stores the visit flag for (expert, workplace, month), updating
// the existing row when there is one.
func (s *VisitService) RecordVisit(ctx context.Context, auth AuthContext, req *models.RecordVisitRequest) (*models.VisitRecord, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	if req.ExpertID == 0 || req.WorkplaceID == 0 {
		return nil, preconditionf("expert_id and workplace_id are required")
	}
	if !ValidMonth(req.Month) {
		return nil, preconditionf("month must be formatted as YYYY-MM")
	}
	if req.Visited == nil {
		return nil, preconditionf("visited is required")
	}

	db := s.db.WithContext(ctx)
	ok, err := personnelInTenant(db, models.RoleExpert, req.ExpertID, auth.TenantID)
	if err != nil {
		return nil, internalError("check expert", err)
	}
	if !ok {
		return nil, referenceViolationf("expert %d does not belong to this tenant", req.ExpertID)
	}
	ok, err = workplaceInTenant(db, req.WorkplaceID, auth.TenantID)
	if err != nil {
		return nil, internalError("check workplace", err)
	}
	if !ok {
		return nil, referenceViolationf("workplace %d does not belong to this tenant", req.WorkplaceID)
	}

	visitDate := req.VisitDate
	if visitDate == nil && *req.Visited {
		now := time.Now().UTC()
		visitDate = &now
	}

	var record models.VisitRecord
	action := VisitUpdated
	err = db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("tenant_id = ? AND expert_id = ? AND workplace_id = ? AND month = ?",
			auth.TenantID, req.ExpertID, req.WorkplaceID, req.Month).
			First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			record = models.VisitRecord{
				TenantID:    auth.TenantID,
				ExpertID:    req.ExpertID,
				WorkplaceID: req.WorkplaceID,
				Month:       req.Month,
				Visited:     *req.Visited,
				VisitDate:   visitDate,
			}
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "expert_id"}, {Name: "workplace_id"}, {Name: "month"}},
				DoNothing: true,
			}).Create(&record)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 1 {
				action = VisitCreated
				return nil
			}

			// a concurrent writer inserted the triple first
			record = models.VisitRecord{}
			err = tx.Where("tenant_id = ? AND expert_id = ? AND workplace_id = ? AND month = ?",
				auth.TenantID, req.ExpertID, req.WorkplaceID, req.Month).
				First(&record).Error
		}
		if err != nil {
			return err
		}

		record.Visited = *req.Visited
		record.VisitDate = visitDate
		return tx.Model(&record).Select("visited", "visit_date", "updated_at").Updates(&record).Error
	})
	if err != nil {
		return nil, internalError("record visit", err)
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":    auth.TenantID,
		"expert_id":    record.ExpertID,
		"workplace_id": record.WorkplaceID,
		"month":        record.Month,
		"visited":      record.Visited,
	}).Info("Visit recorded")

	s.publisher.PublishVisitChanged(ctx, NewVisitEvent(action, record))
	return &record, nil
}

// DeleteVisit removes a visit record of the caller's tenant.
func (s *VisitService) DeleteVisit(ctx context.Context, auth AuthContext, id uint) error {
	if err := auth.Validate(); err != nil {
		return err
	}
	var record models.VisitRecord
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, auth.TenantID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundf("visit %d not found", id)
	}
	if err != nil {
		return internalError("load visit", err)
	}
	if err := s.db.WithContext(ctx).Delete(&record).Error; err != nil {
		return internalError("delete visit", err)
	}

	s.publisher.PublishVisitChanged(ctx, NewVisitEvent(VisitDeleted, record))
	return nil
}

// List pages through the tenant's visit records, newest month first.
func (s *VisitService) List(ctx context.Context, auth AuthContext, filter *models.VisitFilter, page *pagination.PageParams) ([]models.VisitRecord, int64, error) {
	if err := auth.Validate(); err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Model(&models.VisitRecord{}).Where("tenant_id = ?", auth.TenantID)
	if filter != nil {
		if filter.ExpertID != 0 {
			query = query.Where("expert_id = ?", filter.ExpertID)
		}
		if filter.WorkplaceID != 0 {
			query = query.Where("workplace_id = ?", filter.WorkplaceID)
		}
		if filter.Month != "" {
			if !ValidMonth(filter.Month) {
				return nil, 0, preconditionf("month must be formatted as YYYY-MM")
			}
			query = query.Where("month = ?", filter.Month)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internalError("count visits", err)
	}

	var records []models.VisitRecord
	if err := query.Scopes(page.Scope()).Order("month DESC, id DESC").Find(&records).Error; err != nil {
		return nil, 0, internalError("list visits", err)
	}
	return records, total, nil
}

// VisitSummary groups an expert's visits by workplace and month. Records
// outlive a deleted expert, so an unknown id yields an empty summary.
func (s *VisitService) VisitSummary(ctx context.Context, auth AuthContext, expertID uint) (map[uint]*models.WorkplaceVisitSummary, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}

	var records []models.VisitRecord
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND expert_id = ?", auth.TenantID, expertID).
		Order("month DESC").
		Find(&records).Error
	if err != nil {
		return nil, internalError("load visits", err)
	}

	summary := make(map[uint]*models.WorkplaceVisitSummary)
	for _, r := range records {
		entry, ok := summary[r.WorkplaceID]
		if !ok {
			entry = &models.WorkplaceVisitSummary{
				WorkplaceID: r.WorkplaceID,
				Visits:      make(map[string]models.MonthVisit),
			}
			summary[r.WorkplaceID] = entry
		}
		entry.Visits[r.Month] = models.MonthVisit{Visited: r.Visited, Month: r.Month}
	}
	return summary, nil
}

// EnsureMonthPlan inserts an unvisited record for month for every approved
// workplace with an assigned expert, across all tenants. Existing records are
// left alone. It returns how many records were created.
func (s *VisitService) EnsureMonthPlan(ctx context.Context, month string) (int, error) {
	if !ValidMonth(month) {
		return 0, preconditionf("month must be formatted as YYYY-MM")
	}

	var workplaces []models.Workplace
	err := s.db.WithContext(ctx).
		Where("approval_status = ? AND expert_id IS NOT NULL", models.StatusApproved).
		Find(&workplaces).Error
	if err != nil {
		return 0, internalError("load approved workplaces", err)
	}

	created := 0
	for _, w := range workplaces {
		record := models.VisitRecord{
			TenantID:    w.TenantID,
			ExpertID:    *w.ExpertID,
			WorkplaceID: w.ID,
			Month:       month,
		}
		result := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&record)
		if result.Error != nil {
			return created, internalError("seed visit plan", result.Error)
		}
		if result.RowsAffected == 0 {
			continue
		}
		created++
		s.publisher.PublishVisitChanged(ctx, NewVisitEvent(VisitCreated, record))
	}
	return created, nil
}

func workplaceInTenant(db *gorm.DB, id, tenantID uint) (bool, error) {
	var count int64
	err := db.Model(&models.Workplace{}).Where("id = ? AND tenant_id = ?", id, tenantID).Count(&count).Error
	return count > 0, err
}

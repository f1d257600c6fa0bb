package models

import "time"

// VisitRecord marks whether an expert visited a workplace in a month.
// At most one row exists per (expert, workplace, month).
type VisitRecord struct {
	BaseModel
	TenantID    uint       `json:"tenant_id" gorm:"not null;index"`
	ExpertID    uint       `json:"expert_id" gorm:"not null;uniqueIndex:idx_visit_expert_workplace_month"`
	WorkplaceID uint       `json:"workplace_id" gorm:"not null;uniqueIndex:idx_visit_expert_workplace_month"`
	Month       string     `json:"month" gorm:"not null;size:7;uniqueIndex:idx_visit_expert_workplace_month"` // YYYY-MM
	Visited     bool       `json:"visited" gorm:"not null;default:false"`
	VisitDate   *time.Time `json:"visit_date"`
}

func (VisitRecord) TableName() string {
	return "visit_records"
}

// RecordVisitRequest logs a visit for a month.
type RecordVisitRequest struct {
	ExpertID    uint       `json:"expert_id" binding:"required"`
	WorkplaceID uint       `json:"workplace_id" binding:"required"`
	Month       string     `json:"month" binding:"required,yearmonth"`
	Visited     *bool      `json:"visited" binding:"required"`
	VisitDate   *time.Time `json:"visit_date"`
}

// VisitFilter narrows a visit listing.
type VisitFilter struct {
	ExpertID    uint   `form:"expert_id"`
	WorkplaceID uint   `form:"workplace_id"`
	Month       string `form:"month" binding:"omitempty,yearmonth"`
}

// MonthVisit is one month inside a visit summary.
type MonthVisit struct {
	Visited bool   `json:"visited"`
	Month   string `json:"month"`
}

// WorkplaceVisitSummary groups an expert's visits to one workplace by month.
type WorkplaceVisitSummary struct {
	WorkplaceID uint                  `json:"workplace_id"`
	Visits      map[string]MonthVisit `json:"visits"`
}

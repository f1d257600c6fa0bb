package models

import (
	"gorm.io/datatypes"
)

// HazardTier is the ordered risk classification of a workplace.
type HazardTier string

const (
	HazardLow           HazardTier = "low"
	HazardDangerous     HazardTier = "dangerous"
	HazardVeryDangerous HazardTier = "veryDangerous"
)

// Rank orders tiers low < dangerous < veryDangerous. Unknown tiers rank 0.
func (t HazardTier) Rank() int {
	switch t {
	case HazardLow:
		return 1
	case HazardDangerous:
		return 2
	case HazardVeryDangerous:
		return 3
	}
	return 0
}

func (t HazardTier) Valid() bool {
	return t.Rank() > 0
}

// ApprovalStatus is the workflow stage of a workplace. Stored values are the
// Turkish tokens used by existing clients.
type ApprovalStatus string

const (
	StatusAssignment ApprovalStatus = "atama"
	StatusPending    ApprovalStatus = "bekliyor"
	StatusApproved   ApprovalStatus = "onaylandi"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusAssignment, StatusPending, StatusApproved:
		return true
	}
	return false
}

// QuotaCharge is one ledger movement held against a personnel account.
type QuotaCharge struct {
	Role        PersonnelRole `json:"role"`
	PersonnelID uint          `json:"personnel_id"`
	Minutes     int           `json:"minutes"`
}

// Workplace is a client worksite moving through the approval workflow.
type Workplace struct {
	BaseModel
	TenantID         uint           `json:"tenant_id" gorm:"not null;index"`
	Name             string         `json:"name" gorm:"not null;size:200"`
	Address          string         `json:"address" gorm:"size:500"`
	HazardTier       HazardTier     `json:"hazard_tier" gorm:"not null;size:20"`
	Headcount        int            `json:"headcount" gorm:"not null"`
	ExpertID         *uint          `json:"expert_id" gorm:"index"`
	PhysicianID      *uint          `json:"physician_id" gorm:"index"`
	SafetyOfficerID  *uint          `json:"safety_officer_id" gorm:"index"`
	TrackingExpertID *uint          `json:"tracking_expert_id" gorm:"index"`
	ApprovalStatus   ApprovalStatus `json:"approval_status" gorm:"not null;size:20;default:'atama';index"`

	// QuotaCharges is what was debited on entering approved; leaving approved
	// credits exactly these amounts.
	QuotaCharges datatypes.JSONType[[]QuotaCharge] `json:"quota_charges"`
}

func (Workplace) TableName() string {
	return "workplaces"
}

// AssignedID returns the personnel reference held for role.
func (w *Workplace) AssignedID(role PersonnelRole) *uint {
	switch role {
	case RoleExpert:
		return w.ExpertID
	case RolePhysician:
		return w.PhysicianID
	case RoleSafetyOfficer:
		return w.SafetyOfficerID
	}
	return nil
}

// Charges returns the stored debit snapshot.
func (w *Workplace) Charges() []QuotaCharge {
	return w.QuotaCharges.Data()
}

func (w *Workplace) SetCharges(charges []QuotaCharge) {
	w.QuotaCharges = datatypes.NewJSONType(charges)
}

// CreateWorkplaceRequest creates a workplace. Status defaults to atama.
type CreateWorkplaceRequest struct {
	Name             string         `json:"name" binding:"required,min=1,max=200"`
	Address          string         `json:"address" binding:"max=500"`
	HazardTier       HazardTier     `json:"hazard_tier" binding:"required,oneof=low dangerous veryDangerous"`
	Headcount        int            `json:"headcount" binding:"required"`
	ExpertID         *uint          `json:"expert_id"`
	PhysicianID      *uint          `json:"physician_id"`
	SafetyOfficerID  *uint          `json:"safety_officer_id"`
	TrackingExpertID *uint          `json:"tracking_expert_id"`
	ApprovalStatus   ApprovalStatus `json:"approval_status" binding:"omitempty,oneof=atama bekliyor onaylandi"`
}

// UpdateWorkplaceRequest edits a workplace. Nil fields are left unchanged;
// the Clear* flags unassign a role.
type UpdateWorkplaceRequest struct {
	Name                *string         `json:"name" binding:"omitempty,min=1,max=200"`
	Address             *string         `json:"address" binding:"omitempty,max=500"`
	HazardTier          *HazardTier     `json:"hazard_tier" binding:"omitempty,oneof=low dangerous veryDangerous"`
	Headcount           *int            `json:"headcount"`
	ExpertID            *uint           `json:"expert_id"`
	PhysicianID         *uint           `json:"physician_id"`
	SafetyOfficerID     *uint           `json:"safety_officer_id"`
	TrackingExpertID    *uint           `json:"tracking_expert_id"`
	ClearExpert         bool            `json:"clear_expert"`
	ClearPhysician      bool            `json:"clear_physician"`
	ClearSafetyOfficer  bool            `json:"clear_safety_officer"`
	ClearTrackingExpert bool            `json:"clear_tracking_expert"`
	ApprovalStatus      *ApprovalStatus `json:"approval_status" binding:"omitempty,oneof=atama bekliyor onaylandi"`
}

// WorkplaceFilter narrows a workplace listing.
type WorkplaceFilter struct {
	ApprovalStatus ApprovalStatus `form:"approval_status"`
	HazardTier     HazardTier     `form:"hazard_tier"`
	ExpertID       uint           `form:"expert_id"`
	Keyword        string         `form:"keyword"`
}

package models

import "fmt"

// PersonnelRole identifies one of the three quota-holding account kinds.
type PersonnelRole string

const (
	RoleExpert        PersonnelRole = "expert"
	RolePhysician     PersonnelRole = "physician"
	RoleSafetyOfficer PersonnelRole = "safety_officer"
)

// AssignableRoles in the order ledger movements are applied.
var AssignableRoles = []PersonnelRole{RoleExpert, RolePhysician, RoleSafetyOfficer}

func (r PersonnelRole) Valid() bool {
	switch r {
	case RoleExpert, RolePhysician, RoleSafetyOfficer:
		return true
	}
	return false
}

// Table is the storage table of the role's accounts.
func (r PersonnelRole) Table() string {
	switch r {
	case RoleExpert:
		return "experts"
	case RolePhysician:
		return "physicians"
	case RoleSafetyOfficer:
		return "safety_officers"
	}
	return ""
}

// ExpertClass restricts which hazard tiers an expert may serve.
type ExpertClass string

const (
	ExpertClassA ExpertClass = "A"
	ExpertClassB ExpertClass = "B"
	ExpertClassC ExpertClass = "C"
)

func (c ExpertClass) Valid() bool {
	return c == ExpertClassA || c == ExpertClassB || c == ExpertClassC
}

// Personnel is the shape shared by every account kind.
type Personnel struct {
	BaseModel
	TenantID        uint    `json:"tenant_id" gorm:"not null;index"`
	FirstName       string  `json:"first_name" gorm:"not null;size:100"`
	LastName        string  `json:"last_name" gorm:"not null;size:100"`
	Phone           *string `json:"phone" gorm:"size:20"`
	AssignedMinutes int     `json:"assigned_minutes" gorm:"not null;default:0"`
}

// Expert is an occupational safety expert.
type Expert struct {
	Personnel
	ExpertiseClass ExpertClass `json:"expertise_class" gorm:"size:1;not null;default:'A'"`
}

func (Expert) TableName() string { return RoleExpert.Table() }

// Physician is a workplace physician.
type Physician struct {
	Personnel
}

func (Physician) TableName() string { return RolePhysician.Table() }

// SafetyOfficer is an on-site health and safety officer.
type SafetyOfficer struct {
	Personnel
}

func (SafetyOfficer) TableName() string { return RoleSafetyOfficer.Table() }

// PersonnelAccount is implemented by *Expert, *Physician and *SafetyOfficer.
type PersonnelAccount interface {
	Account() *Personnel
	Role() PersonnelRole
}

func (e *Expert) Account() *Personnel        { return &e.Personnel }
func (e *Expert) Role() PersonnelRole        { return RoleExpert }
func (p *Physician) Account() *Personnel     { return &p.Personnel }
func (p *Physician) Role() PersonnelRole     { return RolePhysician }
func (s *SafetyOfficer) Account() *Personnel { return &s.Personnel }
func (s *SafetyOfficer) Role() PersonnelRole { return RoleSafetyOfficer }

// NewPersonnelAccount returns an empty account of role.
func NewPersonnelAccount(role PersonnelRole) (PersonnelAccount, error) {
	switch role {
	case RoleExpert:
		return &Expert{ExpertiseClass: ExpertClassA}, nil
	case RolePhysician:
		return &Physician{}, nil
	case RoleSafetyOfficer:
		return &SafetyOfficer{}, nil
	}
	return nil, fmt.Errorf("unknown personnel role %q", role)
}

// CreatePersonnelRequest creates an account of any role. ExpertiseClass is
// only read for experts.
type CreatePersonnelRequest struct {
	FirstName       string      `json:"first_name" binding:"required,min=1,max=100"`
	LastName        string      `json:"last_name" binding:"required,min=1,max=100"`
	Phone           *string     `json:"phone" binding:"omitempty,max=20"`
	AssignedMinutes *int        `json:"assigned_minutes"`
	ExpertiseClass  ExpertClass `json:"expertise_class" binding:"omitempty,oneof=A B C"`
}

// UpdatePersonnelRequest edits an account. Nil fields are left unchanged.
type UpdatePersonnelRequest struct {
	FirstName       *string      `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName        *string      `json:"last_name" binding:"omitempty,min=1,max=100"`
	Phone           *string      `json:"phone" binding:"omitempty,max=20"`
	AssignedMinutes *int         `json:"assigned_minutes"`
	ExpertiseClass  *ExpertClass `json:"expertise_class" binding:"omitempty,oneof=A B C"`
}

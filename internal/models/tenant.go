package models

// Tenant is an isolated organization. Every other row references one.
type Tenant struct {
	BaseModel
	Name   string `json:"name" gorm:"not null;size:100"`
	Code   string `json:"code" gorm:"unique;not null;size:50;index"`
	Status string `json:"status" gorm:"default:'active';size:20"`
}

func (t *Tenant) TableName() string {
	return "tenants"
}

const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
)

type CreateTenantRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
}

type UpdateTenantRequest struct {
	Name   string `json:"name" binding:"required"`
	Status string `json:"status" binding:"required,oneof=active inactive"`
}

package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an operator account of a tenant.
type User struct {
	BaseModel
	TenantID        uint       `json:"tenant_id" gorm:"not null;index"`
	Username        string     `json:"username" gorm:"unique;not null;size:50;index"`
	PasswordHash    string     `json:"-" gorm:"not null;size:255"`
	Name            string     `json:"name" gorm:"not null;size:100"`
	Role            string     `json:"role" gorm:"size:20;default:'user'"`
	IsPlatformAdmin bool       `json:"is_platform_admin" gorm:"default:false"`
	Status          string     `json:"status" gorm:"default:'active';size:20"`
	LastLoginAt     *time.Time `json:"last_login_at"`

	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

func (u *User) TableName() string {
	return "users"
}

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User roles inside a tenant.
const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"osgb/internal/models"
	"osgb/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type UserService struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db, log: logger.GetLogger()}
}

// CreateUserRequest adds an operator to a tenant.
type CreateUserRequest struct {
	TenantID        uint   `json:"tenant_id" binding:"required"`
	Username        string `json:"username" binding:"required,min=3,max=50"`
	Password        string `json:"password" binding:"required,min=8"`
	Name            string `json:"name" binding:"required,max=100"`
	Role            string `json:"role" binding:"omitempty,oneof=admin user"`
	IsPlatformAdmin bool   `json:"is_platform_admin"`
}

// Create adds a user to an existing tenant. Usernames are globally unique.
func (s *UserService) Create(ctx context.Context, req *CreateUserRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if err := validateUserParams(username, req.Password, req.Name); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = models.UserRoleUser
	}

	db := s.db.WithContext(ctx)
	var tenantCount int64
	if err := db.Model(&models.Tenant{}).Where("id = ?", req.TenantID).Count(&tenantCount).Error; err != nil {
		return nil, internalError("check tenant", err)
	}
	if tenantCount == 0 {
		return nil, referenceViolationf("tenant %d does not exist", req.TenantID)
	}

	var usernameCount int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&usernameCount).Error; err != nil {
		return nil, internalError("check username", err)
	}
	if usernameCount > 0 {
		return nil, conflictf("username %q already exists", username)
	}

	user := &models.User{
		TenantID:        req.TenantID,
		Username:        username,
		Name:            strings.TrimSpace(req.Name),
		Role:            role,
		IsPlatformAdmin: req.IsPlatformAdmin,
		Status:          models.UserStatusActive,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, internalError("hash password", err)
	}
	if err := db.Create(user).Error; err != nil {
		return nil, internalError("create user", err)
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": user.TenantID,
		"user_id":   user.ID,
		"username":  user.Username,
	}).Info("User created")
	return user, nil
}

// GetByID loads a user with its tenant.
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Tenant").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("user %d not found", id)
	}
	if err != nil {
		return nil, internalError("load user", err)
	}
	return &user, nil
}

// GetByUsername loads a user by login name.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Tenant").Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("user %q not found", username)
	}
	if err != nil {
		return nil, internalError("load user", err)
	}
	return &user, nil
}

// Authenticate resolves a username and password to an active user whose
// tenant is active. Every failure reads the same to the caller.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, preconditionf("invalid username or password")
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, preconditionf("invalid username or password")
	}
	if !user.IsActive() {
		return nil, policyViolationf("user is disabled")
	}
	if user.Tenant != nil && user.Tenant.Status != models.TenantStatusActive {
		return nil, policyViolationf("tenant is disabled")
	}
	return user, nil
}

// UpdateLastLogin stamps the login time.
func (s *UserService) UpdateLastLogin(ctx context.Context, userID uint) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("last_login_at", now).Error
	if err != nil {
		return internalError("update last login", err)
	}
	return nil
}

func validateUserParams(username, password, name string) error {
	if utf8.RuneCountInString(username) < 3 || utf8.RuneCountInString(username) > 50 {
		return preconditionf("username must be 3-50 characters")
	}
	if len(password) < 8 {
		return preconditionf("password must be at least 8 characters")
	}
	if strings.TrimSpace(name) == "" {
		return preconditionf("name is required")
	}
	return nil
}

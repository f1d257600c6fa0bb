package main

import (
	"context"
	"fmt"

	"osgb/internal/models"
	"osgb/internal/services"
	"osgb/pkg/config"
	"osgb/pkg/logger"

	"gorm.io/gorm"
)

const defaultTenantCode = "default"

// seedData creates the default tenant and its platform admin on first start.
func seedData(db *gorm.DB, cfg config.SeedConfig) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	tenant, err := ensureDefaultTenant(db, cfg.TenantName)
	if err != nil {
		return fmt.Errorf("create default tenant: %w", err)
	}
	if err := ensureDefaultAdmin(db, tenant.ID, cfg); err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

func ensureDefaultTenant(db *gorm.DB, name string) (*models.Tenant, error) {
	ctx := context.Background()
	tenants := services.NewTenantService(db)

	tenant, err := tenants.GetByCode(ctx, defaultTenantCode)
	if err == nil {
		logger.GetLogger().Info("Default tenant already exists, skipping")
		return tenant, nil
	}
	if services.KindOf(err) != services.KindNotFound {
		return nil, err
	}
	return tenants.Create(ctx, name, defaultTenantCode)
}

func ensureDefaultAdmin(db *gorm.DB, tenantID uint, cfg config.SeedConfig) error {
	ctx := context.Background()
	users := services.NewUserService(db)

	if _, err := users.GetByUsername(ctx, cfg.AdminUsername); err == nil {
		logger.GetLogger().Info("Default admin already exists, skipping")
		return nil
	} else if services.KindOf(err) != services.KindNotFound {
		return err
	}

	_, err := users.Create(ctx, &services.CreateUserRequest{
		TenantID:        tenantID,
		Username:        cfg.AdminUsername,
		Password:        cfg.AdminPassword,
		Name:            "Platform Admin",
		Role:            models.UserRoleAdmin,
		IsPlatformAdmin: true,
	})
	if err != nil {
		return err
	}
	logger.GetLogger().Warnf("Created default admin %q, change its password", cfg.AdminUsername)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"

	"crmhub/internal/services"
	"crmhub/pkg/config"
	"crmhub/pkg/logger"

	"gorm.io/gorm"
)

// seedData 初始化权限目录，并按配置创建初始组织与管理员
func seedData(ctx context.Context, db *gorm.DB, resolver *services.PermissionResolver, cfg config.SeedConfig) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	result, err := services.NewSeedService(db).RunSeeds(ctx)
	if err != nil {
		return fmt.Errorf("初始化权限目录失败: %w", err)
	}
	if !result.Skipped {
		appLogger.Infof("RBAC seeded: %d permissions, %d roles, %d mappings",
			result.Permissions, result.Roles, result.Mappings)
	}

	if err := createDefaultAdmin(ctx, db, resolver, cfg); err != nil {
		return fmt.Errorf("创建初始管理员失败: %w", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDefaultAdmin 管理员邮箱已存在时跳过
func createDefaultAdmin(ctx context.Context, db *gorm.DB, resolver *services.PermissionResolver, cfg config.SeedConfig) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	appLogger := logger.GetLogger()

	users := services.NewUserService(db)
	if _, err := users.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		appLogger.Info("初始管理员已存在，跳过创建")
		return nil
	} else if !errors.Is(err, services.ErrUserNotFound) {
		return err
	}

	admin, err := users.Create(ctx, &services.CreateUserRequest{
		Email:    cfg.AdminEmail,
		Name:     cfg.AdminName,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		return err
	}

	orgs := services.NewOrganizationService(db, resolver, services.NewAuditService(db))
	org, err := orgs.Create(ctx, &services.CreateOrganizationRequest{
		Name: cfg.OrganizationName,
		Slug: cfg.OrganizationSlug,
	}, &admin.ID)
	if err != nil {
		return err
	}

	appLogger.WithField("organization_id", org.ID).Infof("初始管理员创建成功 - 邮箱: %s", admin.Email)
	return nil
}

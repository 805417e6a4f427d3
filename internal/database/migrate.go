package database

import (
	"crmhub/internal/models"
	"crmhub/pkg/logger"
	"fmt"

	"gorm.io/gorm"
)

// 系统角色名称唯一：(organization_id, name) 的唯一索引不约束 NULL
const systemRoleNameIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_roles_system_name ON roles (name) WHERE organization_id IS NULL`

// Migrate 对全局连接执行迁移
func Migrate() error {
	return MigrateDB(DB)
}

// MigrateDB 执行数据库迁移
func MigrateDB(db *gorm.DB) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Permission{},
		&models.Role{},
		&models.RolePermission{},
		&models.Membership{},
		&models.Invitation{},
		&models.AuditLog{},
	)
	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	if err := db.Exec(systemRoleNameIndex).Error; err != nil {
		appLogger.Errorf("Create system role index failed: %v", err)
		return fmt.Errorf("创建系统角色唯一索引失败: %w", err)
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}

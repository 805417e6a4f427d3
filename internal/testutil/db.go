// Package testutil 提供基于 SQLite 内存库的测试数据库与数据构造函数。
package testutil

import (
	"fmt"
	"io"
	"regexp"
	"testing"

	"crmhub/internal/database"
	"crmhub/internal/models"
	"crmhub/pkg/logger"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

func init() {
	l := logrus.New()
	l.SetOutput(io.Discard)
	logger.Logger = l
}

// NewTestDB 每个测试独立的内存库，已执行迁移并开启外键约束
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", unsafeName.ReplaceAllString(t.Name(), "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 单连接：事务内不得再使用外层连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.MigrateDB(db))
	return db
}

// CreateUser 创建用户，密码为 "password123"
func CreateUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: email, Status: models.UserStatusActive}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateOrganization 创建组织
func CreateOrganization(t *testing.T, db *gorm.DB, slug string) *models.Organization {
	t.Helper()
	org := &models.Organization{Name: slug, Slug: slug, Status: models.OrganizationStatusActive}
	require.NoError(t, db.Create(org).Error)
	return org
}

// CreateMembership 直接写入成员关系
func CreateMembership(t *testing.T, db *gorm.DB, userID, orgID, roleID uint) *models.Membership {
	t.Helper()
	m := &models.Membership{UserID: userID, OrganizationID: orgID, RoleID: roleID}
	require.NoError(t, db.Omit("User", "Organization", "Role", "Inviter").Create(m).Error)
	return m
}

// PermissionID 按 slug 查询权限ID
func PermissionID(t *testing.T, db *gorm.DB, slug string) uint {
	t.Helper()
	var p models.Permission
	require.NoError(t, db.Where("slug = ?", slug).First(&p).Error)
	return p.ID
}

// SystemRoleID 按名称查询系统角色ID
func SystemRoleID(t *testing.T, db *gorm.DB, name string) uint {
	t.Helper()
	var r models.Role
	require.NoError(t, db.Where("name = ? AND organization_id IS NULL", name).First(&r).Error)
	return r.ID
}

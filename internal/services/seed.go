package services

import (
	"context"
	"fmt"

	"crmhub/internal/models"
	"crmhub/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedResult 种子写入数量
type SeedResult struct {
	Permissions int  `json:"permissions"`
	Roles       int  `json:"roles"`
	Mappings    int  `json:"mappings"`
	Skipped     bool `json:"skipped"`
}

// SeedService 初始化系统权限与系统角色
type SeedService struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewSeedService(db *gorm.DB) *SeedService {
	return &SeedService{
		db:  db,
		log: logger.WithComponent("seed"),
	}
}

// IsRBACSeeded 至少存在一条权限与一条角色即视为已初始化
func (s *SeedService) IsRBACSeeded(ctx context.Context) (bool, error) {
	var permissions, roles int64
	if err := s.db.WithContext(ctx).Model(&models.Permission{}).Limit(1).Count(&permissions).Error; err != nil {
		return false, fmt.Errorf("查询权限数量失败: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Role{}).Limit(1).Count(&roles).Error; err != nil {
		return false, fmt.Errorf("查询角色数量失败: %w", err)
	}
	return permissions > 0 && roles > 0, nil
}

// SeedRBAC 在单个事务内写入系统权限、系统角色与映射；
// 已初始化的数据库会因唯一约束失败并整体回滚
func (s *SeedService) SeedRBAC(ctx context.Context) (*SeedResult, error) {
	permDefs := SystemPermissions()
	roleDefs := SystemRoles()
	result := &SeedResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		permissions := make([]models.Permission, len(permDefs))
		for i, d := range permDefs {
			permissions[i] = models.Permission{
				Slug:               d.Slug(),
				Action:             d.Action,
				Resource:           d.Resource,
				Description:        d.Description,
				IsSystemPermission: true,
			}
		}
		if err := tx.Omit(clause.Associations).Create(&permissions).Error; err != nil {
			return fmt.Errorf("写入系统权限失败: %w", err)
		}

		roles := make([]models.Role, len(roleDefs))
		for i, d := range roleDefs {
			roles[i] = models.Role{
				Name:         d.Name,
				Description:  d.Description,
				IsSystemRole: true,
			}
		}
		if err := tx.Omit(clause.Associations).Create(&roles).Error; err != nil {
			return fmt.Errorf("写入系统角色失败: %w", err)
		}

		// 重新查询生成的ID，不依赖批量插入的主键回填
		permIDs, err := systemPermissionIDs(tx)
		if err != nil {
			return err
		}
		roleIDs, err := systemRoleIDs(tx)
		if err != nil {
			return err
		}

		mappings := make([]models.RolePermission, 0, 128)
		for _, d := range roleDefs {
			roleID, ok := roleIDs[d.Name]
			if !ok {
				return fmt.Errorf("系统角色未写入: %s", d.Name)
			}
			for _, slug := range d.PermissionSlugs {
				permID, ok := permIDs[slug]
				if !ok {
					return fmt.Errorf("角色 %s 引用了未定义的权限: %s", d.Name, slug)
				}
				mappings = append(mappings, models.RolePermission{RoleID: roleID, PermissionID: permID})
			}
		}
		if err := tx.Omit(clause.Associations).CreateInBatches(&mappings, 100).Error; err != nil {
			return fmt.Errorf("写入角色权限映射失败: %w", err)
		}

		result.Permissions = len(permissions)
		result.Roles = len(roles)
		result.Mappings = len(mappings)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"permissions": result.Permissions,
		"roles":       result.Roles,
		"mappings":    result.Mappings,
	}).Info("RBAC catalog seeded")
	return result, nil
}

// RunSeeds 未初始化时执行 SeedRBAC，否则不做任何写入
func (s *SeedService) RunSeeds(ctx context.Context) (*SeedResult, error) {
	seeded, err := s.IsRBACSeeded(ctx)
	if err != nil {
		return nil, err
	}
	if seeded {
		s.log.Info("RBAC catalog already seeded, skipping")
		return &SeedResult{Skipped: true}, nil
	}
	return s.SeedRBAC(ctx)
}

func systemPermissionIDs(tx *gorm.DB) (map[string]uint, error) {
	var rows []models.Permission
	if err := tx.Select("id", "slug").Where("organization_id IS NULL").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询系统权限失败: %w", err)
	}
	ids := make(map[string]uint, len(rows))
	for _, p := range rows {
		ids[p.Slug] = p.ID
	}
	return ids, nil
}

func systemRoleIDs(tx *gorm.DB) (map[string]uint, error) {
	var rows []models.Role
	if err := tx.Select("id", "name").Where("organization_id IS NULL AND is_system_role = ?", true).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询系统角色失败: %w", err)
	}
	ids := make(map[string]uint, len(rows))
	for _, r := range rows {
		ids[r.Name] = r.ID
	}
	return ids, nil
}

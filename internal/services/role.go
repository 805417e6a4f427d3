package services

import (
	"context"
	"errors"
	"fmt"

	"crmhub/internal/models"
	"crmhub/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateCustomRoleRequest 创建组织自定义角色
type CreateCustomRoleRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=100"`
	Description    string `json:"description" validate:"max=255"`
	OrganizationID uint   `json:"organization_id" validate:"required"`
	PermissionIDs  []uint `json:"permission_ids" validate:"dive,required"`
	ActorID        *uint  `json:"-"`
}

// UpdateRoleRequest 更新自定义角色基本信息
type UpdateRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=255"`
}

type RoleService struct {
	db       *gorm.DB
	log      *logrus.Logger
	resolver *PermissionResolver
	audit    *AuditService
}

func NewRoleService(db *gorm.DB, resolver *PermissionResolver, audit *AuditService) *RoleService {
	return &RoleService{
		db:       db,
		log:      logger.GetLogger(),
		resolver: resolver,
		audit:    audit,
	}
}

// ========== 查询 ==========

// GetRoleByID 获取角色及其完整权限；角色不存在时返回 nil, nil
func (s *RoleService) GetRoleByID(ctx context.Context, id uint) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).First(&role, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}

	roles := []models.Role{role}
	if err := hydrateRoles(s.db.WithContext(ctx), roles); err != nil {
		return nil, err
	}
	return &roles[0], nil
}

// GetOrganizationRoles 系统角色加上该组织的自定义角色，系统角色在前
func (s *RoleService) GetOrganizationRoles(ctx context.Context, organizationID uint) ([]models.Role, error) {
	var roles []models.Role
	err := s.db.WithContext(ctx).
		Where("organization_id IS NULL OR organization_id = ?", organizationID).
		Order("is_system_role DESC, id ASC").
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("查询组织角色失败: %w", err)
	}
	if err := hydrateRoles(s.db.WithContext(ctx), roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// hydrateRoles 一次查询填充多个角色的权限，无映射的角色得到空列表
func hydrateRoles(db *gorm.DB, roles []models.Role) error {
	if len(roles) == 0 {
		return nil
	}
	roleIDs := make([]uint, len(roles))
	for i := range roles {
		roleIDs[i] = roles[i].ID
		roles[i].Permissions = []models.Permission{}
	}

	var mappings []models.RolePermission
	if err := db.Where("role_id IN ?", roleIDs).Find(&mappings).Error; err != nil {
		return fmt.Errorf("查询角色权限映射失败: %w", err)
	}
	if len(mappings) == 0 {
		return nil
	}

	permIDs := make([]uint, 0, len(mappings))
	for _, m := range mappings {
		permIDs = append(permIDs, m.PermissionID)
	}
	var perms []models.Permission
	if err := db.Where("id IN ?", uniqueIDs(permIDs)).Order("slug").Find(&perms).Error; err != nil {
		return fmt.Errorf("查询权限失败: %w", err)
	}

	byRole := make(map[uint]map[uint]struct{}, len(roles))
	for _, m := range mappings {
		if byRole[m.RoleID] == nil {
			byRole[m.RoleID] = make(map[uint]struct{})
		}
		byRole[m.RoleID][m.PermissionID] = struct{}{}
	}
	for i := range roles {
		granted := byRole[roles[i].ID]
		for _, p := range perms {
			if _, ok := granted[p.ID]; ok {
				roles[i].Permissions = append(roles[i].Permissions, p)
			}
		}
	}
	return nil
}

// ========== 写操作 ==========

// CreateCustomRole 在一个事务内创建角色及其权限映射，提交后重新读取
func (s *RoleService) CreateCustomRole(ctx context.Context, req *CreateCustomRoleRequest) (*models.Role, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	permIDs := uniqueIDs(req.PermissionIDs)

	var roleID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOrganization(tx, req.OrganizationID); err != nil {
			return err
		}
		if err := ensureRoleNameFree(tx, req.OrganizationID, req.Name, 0); err != nil {
			return err
		}
		if err := checkAssignablePermissions(tx, req.OrganizationID, permIDs); err != nil {
			return err
		}

		role := &models.Role{
			Name:           req.Name,
			Description:    req.Description,
			OrganizationID: models.UintPtr(req.OrganizationID),
			IsSystemRole:   false,
		}
		if err := tx.Omit(clause.Associations).Create(role).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrRoleNameTaken
			}
			return fmt.Errorf("创建角色失败: %w", err)
		}
		if err := insertRolePermissions(tx, role.ID, permIDs); err != nil {
			return err
		}
		roleID = role.ID

		return s.audit.Record(tx, AuditEntry{
			OrganizationID: role.OrganizationID,
			ActorID:        req.ActorID,
			Action:         models.AuditRoleCreated,
			TargetType:     models.AuditTargetRole,
			TargetID:       role.ID,
			Details: map[string]interface{}{
				"name":           role.Name,
				"permission_ids": permIDs,
			},
		})
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"organization_id": req.OrganizationID,
			"name":            req.Name,
		}).Warn("Create custom role failed")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"organization_id": req.OrganizationID,
		"role_id":         roleID,
		"permissions":     len(permIDs),
	}).Info("Custom role created")

	role, err := s.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

// UpdateRole 修改自定义角色的名称与描述
func (s *RoleService) UpdateRole(ctx context.Context, organizationID, roleID uint, req *UpdateRoleRequest, actorID *uint) (*models.Role, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := loadMutableRole(tx, organizationID, roleID)
		if err != nil {
			return err
		}
		if err := ensureRoleNameFree(tx, organizationID, req.Name, role.ID); err != nil {
			return err
		}

		err = tx.Model(role).Updates(map[string]interface{}{
			"name":        req.Name,
			"description": req.Description,
		}).Error
		if err != nil {
			if isDuplicateKey(err) {
				return ErrRoleNameTaken
			}
			return fmt.Errorf("更新角色失败: %w", err)
		}

		return s.audit.Record(tx, AuditEntry{
			OrganizationID: models.UintPtr(organizationID),
			ActorID:        actorID,
			Action:         models.AuditRoleUpdated,
			TargetType:     models.AuditTargetRole,
			TargetID:       role.ID,
			Details:        map[string]interface{}{"name": req.Name, "description": req.Description},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetRoleByID(ctx, roleID)
}

// SetRolePermissions 原子替换自定义角色的权限，并失效所有持有者的缓存
func (s *RoleService) SetRolePermissions(ctx context.Context, organizationID, roleID uint, permissionIDs []uint, actorID *uint) (*models.Role, error) {
	permIDs := uniqueIDs(permissionIDs)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := loadMutableRole(tx, organizationID, roleID)
		if err != nil {
			return err
		}
		if err := checkAssignablePermissions(tx, organizationID, permIDs); err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("清除角色权限失败: %w", err)
		}
		if err := insertRolePermissions(tx, role.ID, permIDs); err != nil {
			return err
		}

		return s.audit.Record(tx, AuditEntry{
			OrganizationID: models.UintPtr(organizationID),
			ActorID:        actorID,
			Action:         models.AuditRolePermissionsChanged,
			TargetType:     models.AuditTargetRole,
			TargetID:       role.ID,
			Details:        map[string]interface{}{"permission_ids": permIDs},
		})
	})
	if err != nil {
		return nil, err
	}

	s.resolver.InvalidateRoles(ctx, roleID)
	return s.GetRoleByID(ctx, roleID)
}

// DeleteRole 删除自定义角色；仍被成员持有的角色拒绝删除
func (s *RoleService) DeleteRole(ctx context.Context, organizationID, roleID uint, actorID *uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := loadMutableRole(tx, organizationID, roleID)
		if err != nil {
			return err
		}

		var holders int64
		if err := tx.Model(&models.Membership{}).Where("role_id = ?", role.ID).Count(&holders).Error; err != nil {
			return fmt.Errorf("查询角色成员失败: %w", err)
		}
		if holders > 0 {
			return ErrRoleInUse
		}

		if err := tx.Delete(role).Error; err != nil {
			// 并发新增的成员由外键 RESTRICT 拦截
			if isForeignKeyViolation(err) {
				return ErrRoleInUse
			}
			return fmt.Errorf("删除角色失败: %w", err)
		}

		return s.audit.Record(tx, AuditEntry{
			OrganizationID: models.UintPtr(organizationID),
			ActorID:        actorID,
			Action:         models.AuditRoleDeleted,
			TargetType:     models.AuditTargetRole,
			TargetID:       role.ID,
			Details:        map[string]interface{}{"name": role.Name},
		})
	})
}

// ========== 事务内辅助函数 ==========

func ensureOrganization(tx *gorm.DB, organizationID uint) error {
	var count int64
	if err := tx.Model(&models.Organization{}).Where("id = ?", organizationID).Count(&count).Error; err != nil {
		return fmt.Errorf("查询组织失败: %w", err)
	}
	if count == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// ensureRoleNameFree 名称不能与系统角色或本组织其他角色重复
func ensureRoleNameFree(tx *gorm.DB, organizationID uint, name string, exceptID uint) error {
	query := tx.Model(&models.Role{}).
		Where("name = ?", name).
		Where("organization_id IS NULL OR organization_id = ?", organizationID)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("查询角色名称失败: %w", err)
	}
	if count > 0 {
		return ErrRoleNameTaken
	}
	return nil
}

// checkAssignablePermissions 权限必须存在，且为系统权限或本组织权限
func checkAssignablePermissions(tx *gorm.DB, organizationID uint, permIDs []uint) error {
	if len(permIDs) == 0 {
		return nil
	}
	var perms []models.Permission
	if err := tx.Select("id", "organization_id").Where("id IN ?", permIDs).Find(&perms).Error; err != nil {
		return fmt.Errorf("查询权限失败: %w", err)
	}
	if len(perms) != len(permIDs) {
		return ErrPermissionNotFound
	}
	for _, p := range perms {
		if p.OrganizationID != nil && *p.OrganizationID != organizationID {
			return ErrCrossOrganizationPermission
		}
	}
	return nil
}

func insertRolePermissions(tx *gorm.DB, roleID uint, permIDs []uint) error {
	if len(permIDs) == 0 {
		return nil
	}
	rows := make([]models.RolePermission, len(permIDs))
	for i, pid := range permIDs {
		rows[i] = models.RolePermission{RoleID: roleID, PermissionID: pid}
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return fmt.Errorf("写入角色权限失败: %w", err)
	}
	return nil
}

// loadMutableRole 加载属于该组织的自定义角色
func loadMutableRole(tx *gorm.DB, organizationID, roleID uint) (*models.Role, error) {
	var role models.Role
	err := tx.First(&role, roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}
	if role.IsSystemRole || role.OrganizationID == nil {
		return nil, ErrSystemRoleImmutable
	}
	if *role.OrganizationID != organizationID {
		return nil, ErrRoleNotFound
	}
	return &role, nil
}

package services

import (
	"context"
	"errors"
	"fmt"

	"crmhub/internal/models"
	"crmhub/pkg/logger"
	"crmhub/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PermissionFilter 权限列表筛选
type PermissionFilter struct {
	Resource       string
	Action         string
	OrganizationID uint // 非零时包含该组织的自定义权限
}

// CreatePermissionRequest 组织自定义权限
type CreatePermissionRequest struct {
	Action      string `json:"action" validate:"required,max=30,excludes=:"`
	Resource    string `json:"resource" validate:"required,max=50,excludes=:"`
	Description string `json:"description" validate:"max=255"`
}

type PermissionService struct {
	db       *gorm.DB
	log      *logrus.Logger
	resolver *PermissionResolver
	audit    *AuditService
}

func NewPermissionService(db *gorm.DB, resolver *PermissionResolver, audit *AuditService) *PermissionService {
	return &PermissionService{
		db:       db,
		log:      logger.GetLogger(),
		resolver: resolver,
		audit:    audit,
	}
}

// ========== 基础查询方法 ==========

// GetWithPage 分页获取权限，系统权限始终可见
func (s *PermissionService) GetWithPage(ctx context.Context, filter PermissionFilter, page *pagination.PageParams) ([]models.Permission, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Permission{})
	if filter.OrganizationID != 0 {
		query = query.Where("organization_id IS NULL OR organization_id = ?", filter.OrganizationID)
	} else {
		query = query.Where("organization_id IS NULL")
	}
	if filter.Resource != "" {
		query = query.Where("resource = ?", filter.Resource)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var permissions []models.Permission
	if err := query.Order("resource, action").Scopes(page.Scope()).Find(&permissions).Error; err != nil {
		return nil, 0, err
	}
	return permissions, total, nil
}

// GetByID 根据ID获取权限
func (s *PermissionService) GetByID(ctx context.Context, id uint) (*models.Permission, error) {
	var permission models.Permission
	err := s.db.WithContext(ctx).First(&permission, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPermissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &permission, nil
}

// GetBySlug 根据标识获取权限
func (s *PermissionService) GetBySlug(ctx context.Context, slug string) (*models.Permission, error) {
	var permission models.Permission
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&permission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPermissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &permission, nil
}

// ========== 组织自定义权限 ==========

// CreateOrganizationPermission 创建组织自定义权限，slug 全局唯一
func (s *PermissionService) CreateOrganizationPermission(ctx context.Context, organizationID uint, req *CreatePermissionRequest, actorID *uint) (*models.Permission, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	permission := &models.Permission{
		Slug:               models.BuildSlug(req.Action, req.Resource),
		Action:             req.Action,
		Resource:           req.Resource,
		Description:        req.Description,
		IsSystemPermission: false,
		OrganizationID:     models.UintPtr(organizationID),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOrganization(tx, organizationID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Permission{}).Where("slug = ?", permission.Slug).Count(&count).Error; err != nil {
			return fmt.Errorf("查询权限标识失败: %w", err)
		}
		if count > 0 {
			return ErrPermissionSlugTaken
		}
		if err := tx.Omit("Organization").Create(permission).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrPermissionSlugTaken
			}
			return fmt.Errorf("创建权限失败: %w", err)
		}
		return s.audit.Record(tx, AuditEntry{
			OrganizationID: permission.OrganizationID,
			ActorID:        actorID,
			Action:         models.AuditPermissionCreated,
			TargetType:     models.AuditTargetPermission,
			TargetID:       permission.ID,
			Details:        map[string]interface{}{"slug": permission.Slug},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"organization_id": organizationID,
		"slug":            permission.Slug,
	}).Info("Organization permission created")
	return permission, nil
}

// DeleteOrganizationPermission 删除组织自定义权限及其映射，并失效相关角色持有者的缓存
func (s *PermissionService) DeleteOrganizationPermission(ctx context.Context, organizationID, permissionID uint, actorID *uint) error {
	var affectedRoles []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var permission models.Permission
		err := tx.First(&permission, permissionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPermissionNotFound
		}
		if err != nil {
			return fmt.Errorf("查询权限失败: %w", err)
		}
		if permission.IsSystemPermission || permission.OrganizationID == nil {
			return ErrSystemPermissionImmutable
		}
		if *permission.OrganizationID != organizationID {
			return ErrPermissionNotFound
		}

		if err := tx.Model(&models.RolePermission{}).
			Where("permission_id = ?", permission.ID).
			Pluck("role_id", &affectedRoles).Error; err != nil {
			return fmt.Errorf("查询权限映射失败: %w", err)
		}
		// 不依赖数据库是否开启外键级联
		if err := tx.Where("permission_id = ?", permission.ID).Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("删除权限映射失败: %w", err)
		}
		if err := tx.Delete(&permission).Error; err != nil {
			return fmt.Errorf("删除权限失败: %w", err)
		}
		return s.audit.Record(tx, AuditEntry{
			OrganizationID: models.UintPtr(organizationID),
			ActorID:        actorID,
			Action:         models.AuditPermissionDeleted,
			TargetType:     models.AuditTargetPermission,
			TargetID:       permission.ID,
			Details:        map[string]interface{}{"slug": permission.Slug, "role_ids": affectedRoles},
		})
	})
	if err != nil {
		return err
	}

	s.resolver.InvalidateRoles(ctx, affectedRoles...)
	return nil
}

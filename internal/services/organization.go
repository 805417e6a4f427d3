package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crmhub/internal/models"
	"crmhub/pkg/logger"
	"crmhub/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateOrganizationRequest 创建组织
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
	Slug string `json:"slug" validate:"required,min=2,max=50,excludesall= /:"`
}

type OrganizationService struct {
	db       *gorm.DB
	log      *logrus.Logger
	resolver *PermissionResolver
	audit    *AuditService
}

func NewOrganizationService(db *gorm.DB, resolver *PermissionResolver, audit *AuditService) *OrganizationService {
	return &OrganizationService{
		db:       db,
		log:      logger.GetLogger(),
		resolver: resolver,
		audit:    audit,
	}
}

// Create 创建组织；ownerID 非空时创建者以 Gerente Geral 角色加入
func (s *OrganizationService) Create(ctx context.Context, req *CreateOrganizationRequest, ownerID *uint) (*models.Organization, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	org := &models.Organization{
		Name:   strings.TrimSpace(req.Name),
		Slug:   strings.ToLower(req.Slug),
		Status: models.OrganizationStatusActive,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Organization{}).Where("slug = ?", org.Slug).Count(&count).Error; err != nil {
			return fmt.Errorf("查询组织标识失败: %w", err)
		}
		if count > 0 {
			return ErrOrganizationSlugTaken
		}
		if err := tx.Create(org).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrOrganizationSlugTaken
			}
			return fmt.Errorf("创建组织失败: %w", err)
		}
		if ownerID == nil {
			return nil
		}

		ownerRole, err := systemRoleByName(tx, models.RoleGerenteGeral)
		if err != nil {
			return err
		}
		m, err := createMembership(tx, org.ID, *ownerID, ownerRole.ID, nil)
		if err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			OrganizationID: models.UintPtr(org.ID),
			ActorID:        ownerID,
			Action:         models.AuditMemberAdded,
			TargetType:     models.AuditTargetMembership,
			TargetID:       m.ID,
			Details:        map[string]interface{}{"user_id": *ownerID, "role_id": ownerRole.ID},
		})
	})
	if err != nil {
		return nil, err
	}

	if ownerID != nil {
		s.resolver.InvalidateUser(ctx, *ownerID, org.ID)
	}
	s.log.WithFields(logrus.Fields{
		"organization_id": org.ID,
		"slug":            org.Slug,
	}).Info("Organization created")
	return org, nil
}

// GetByID 根据ID获取组织
func (s *OrganizationService) GetByID(ctx context.Context, id uint) (*models.Organization, error) {
	var org models.Organization
	err := s.db.WithContext(ctx).First(&org, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetWithPage 分页获取组织
func (s *OrganizationService) GetWithPage(ctx context.Context, keyword string, page *pagination.PageParams) ([]models.Organization, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Organization{})
	if keyword != "" {
		pattern := "%" + keyword + "%"
		query = query.Where("name LIKE ? OR slug LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orgs []models.Organization
	if err := query.Order("id ASC").Scopes(page.Scope()).Find(&orgs).Error; err != nil {
		return nil, 0, err
	}
	return orgs, total, nil
}

// Delete 删除组织及其成员关系、邀请、自定义角色与权限
func (s *OrganizationService) Delete(ctx context.Context, id uint) error {
	// 删除后无法再查到成员，需提前收集缓存键
	keys, err := s.resolver.OrganizationMemberKeys(ctx, id)
	if err != nil {
		return fmt.Errorf("查询组织成员失败: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOrganization(tx, id); err != nil {
			return err
		}
		// 成员关系对角色是 RESTRICT，先删除成员关系再删除组织
		if err := tx.Where("organization_id = ?", id).Delete(&models.Membership{}).Error; err != nil {
			return fmt.Errorf("删除成员关系失败: %w", err)
		}
		if err := tx.Where("organization_id = ?", id).Delete(&models.Invitation{}).Error; err != nil {
			return fmt.Errorf("删除邀请失败: %w", err)
		}
		if err := tx.Where("role_id IN (?)", tx.Model(&models.Role{}).Select("id").Where("organization_id = ?", id)).
			Or("permission_id IN (?)", tx.Model(&models.Permission{}).Select("id").Where("organization_id = ?", id)).
			Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("删除角色权限映射失败: %w", err)
		}
		if err := tx.Where("organization_id = ?", id).Delete(&models.Role{}).Error; err != nil {
			return fmt.Errorf("删除自定义角色失败: %w", err)
		}
		if err := tx.Where("organization_id = ?", id).Delete(&models.Permission{}).Error; err != nil {
			return fmt.Errorf("删除自定义权限失败: %w", err)
		}
		return tx.Delete(&models.Organization{}, id).Error
	})
	if err != nil {
		return err
	}

	s.resolver.InvalidateMembers(ctx, keys)
	s.log.WithFields(logrus.Fields{
		"organization_id": id,
		"members":         len(keys),
	}).Info("Organization deleted")
	return nil
}

func systemRoleByName(tx *gorm.DB, name string) (*models.Role, error) {
	var role models.Role
	err := tx.Where("name = ? AND organization_id IS NULL AND is_system_role = ?", name, true).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("查询系统角色失败: %w", err)
	}
	return &role, nil
}

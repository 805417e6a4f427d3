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
	"gorm.io/gorm/clause"
)

// AddMemberRequest 将已存在的用户加入组织
type AddMemberRequest struct {
	UserID    uint  `json:"user_id" validate:"required"`
	RoleID    uint  `json:"role_id" validate:"required"`
	InvitedBy *uint `json:"-"`
}

// MembershipService 管理 (用户, 组织, 角色) 关系，每次写入都会失效对应缓存
type MembershipService struct {
	db       *gorm.DB
	log      *logrus.Logger
	resolver *PermissionResolver
	audit    *AuditService
}

func NewMembershipService(db *gorm.DB, resolver *PermissionResolver, audit *AuditService) *MembershipService {
	return &MembershipService{
		db:       db,
		log:      logger.GetLogger(),
		resolver: resolver,
		audit:    audit,
	}
}

// AddMember 添加成员
func (s *MembershipService) AddMember(ctx context.Context, organizationID uint, req *AddMemberRequest) (*models.Membership, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var membership *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOrganization(tx, organizationID); err != nil {
			return err
		}
		if err := ensureUser(tx, req.UserID); err != nil {
			return err
		}
		m, err := createMembership(tx, organizationID, req.UserID, req.RoleID, req.InvitedBy)
		if err != nil {
			return err
		}
		membership = m
		return s.audit.Record(tx, AuditEntry{
			OrganizationID: models.UintPtr(organizationID),
			ActorID:        req.InvitedBy,
			Action:         models.AuditMemberAdded,
			TargetType:     models.AuditTargetMembership,
			TargetID:       m.ID,
			Details:        map[string]interface{}{"user_id": req.UserID, "role_id": req.RoleID},
		})
	})
	if err != nil {
		return nil, err
	}

	s.resolver.InvalidateUser(ctx, req.UserID, organizationID)
	s.log.WithFields(logrus.Fields{
		"organization_id": organizationID,
		"user_id":         req.UserID,
		"role_id":         req.RoleID,
	}).Info("Member added")
	return membership, nil
}

// ChangeRole 修改成员角色
func (s *MembershipService) ChangeRole(ctx context.Context, organizationID, userID, roleID uint, actorID *uint) (*models.Membership, error) {
	var membership models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("organization_id = ? AND user_id = ?", organizationID, userID).First(&membership).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMembershipNotFound
		}
		if err != nil {
			return fmt.Errorf("查询成员关系失败: %w", err)
		}
		if err := ensureRoleUsable(tx, organizationID, roleID); err != nil {
			return err
		}

		previous := membership.RoleID
		if err := tx.Model(&membership).Update("role_id", roleID).Error; err != nil {
			return fmt.Errorf("更新成员角色失败: %w", err)
		}
		return s.audit.Record(tx, AuditEntry{
			OrganizationID: models.UintPtr(organizationID),
			ActorID:        actorID,
			Action:         models.AuditMemberRoleChanged,
			TargetType:     models.AuditTargetMembership,
			TargetID:       membership.ID,
			Details: map[string]interface{}{
				"user_id":      userID,
				"from_role_id": previous,
				"to_role_id":   roleID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.resolver.InvalidateUser(ctx, userID, organizationID)
	return &membership, nil
}

// RemoveMember 移除成员
func (s *MembershipService) RemoveMember(ctx context.Context, organizationID, userID uint, actorID *uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var membership models.Membership
		err := tx.Where("organization_id = ? AND user_id = ?", organizationID, userID).First(&membership).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMembershipNotFound
		}
		if err != nil {
			return fmt.Errorf("查询成员关系失败: %w", err)
		}
		if err := tx.Delete(&membership).Error; err != nil {
			return fmt.Errorf("删除成员关系失败: %w", err)
		}
		return s.audit.Record(tx, AuditEntry{
			OrganizationID: models.UintPtr(organizationID),
			ActorID:        actorID,
			Action:         models.AuditMemberRemoved,
			TargetType:     models.AuditTargetMembership,
			TargetID:       membership.ID,
			Details:        map[string]interface{}{"user_id": userID, "role_id": membership.RoleID},
		})
	})
	if err != nil {
		return err
	}

	s.resolver.InvalidateUser(ctx, userID, organizationID)
	return nil
}

// GetMembership 获取成员关系
func (s *MembershipService) GetMembership(ctx context.Context, organizationID, userID uint) (*models.Membership, error) {
	var membership models.Membership
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Role").
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// ListMembers 分页获取组织成员
func (s *MembershipService) ListMembers(ctx context.Context, organizationID uint, page *pagination.PageParams) ([]models.Membership, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Membership{}).Where("organization_id = ?", organizationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var members []models.Membership
	err := query.Preload("User").Preload("Role").Order("id ASC").Scopes(page.Scope()).Find(&members).Error
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// ListUserMemberships 用户所属的全部组织
func (s *MembershipService) ListUserMemberships(ctx context.Context, userID uint) ([]models.Membership, error) {
	var memberships []models.Membership
	err := s.db.WithContext(ctx).
		Preload("Organization").
		Preload("Role").
		Where("user_id = ?", userID).
		Order("organization_id ASC").
		Find(&memberships).Error
	return memberships, err
}

// ========== 事务内辅助函数 ==========

func ensureUser(tx *gorm.DB, userID uint) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("查询用户失败: %w", err)
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ensureRoleUsable 角色必须是系统角色或本组织的自定义角色
func ensureRoleUsable(tx *gorm.DB, organizationID, roleID uint) error {
	var role models.Role
	err := tx.Select("id", "organization_id").First(&role, roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRoleNotFound
	}
	if err != nil {
		return fmt.Errorf("查询角色失败: %w", err)
	}
	if !role.UsableBy(organizationID) {
		return ErrRoleNotUsable
	}
	return nil
}

// createMembership 校验角色后创建成员关系，已存在时返回 ErrMembershipExists
func createMembership(tx *gorm.DB, organizationID, userID, roleID uint, invitedBy *uint) (*models.Membership, error) {
	if err := ensureRoleUsable(tx, organizationID, roleID); err != nil {
		return nil, err
	}

	var count int64
	if err := tx.Model(&models.Membership{}).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("查询成员关系失败: %w", err)
	}
	if count > 0 {
		return nil, ErrMembershipExists
	}

	membership := &models.Membership{
		OrganizationID: organizationID,
		UserID:         userID,
		RoleID:         roleID,
		InvitedBy:      invitedBy,
	}
	if err := tx.Omit(clause.Associations).Create(membership).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrMembershipExists
		}
		return nil, fmt.Errorf("创建成员关系失败: %w", err)
	}
	return membership, nil
}

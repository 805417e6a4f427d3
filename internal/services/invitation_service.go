package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crmhub/internal/models"
	"crmhub/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvitationTTL 邀请有效期
const InvitationTTL = 7 * 24 * time.Hour

// CreateInvitationRequest 创建邀请请求
type CreateInvitationRequest struct {
	Email  string `json:"email" validate:"required,email,max=100"`
	RoleID uint   `json:"role_id" validate:"required"`
}

// InvitationService 邀请服务，接受邀请即创建成员关系
type InvitationService struct {
	db       *gorm.DB
	log      *logrus.Logger
	resolver *PermissionResolver
	audit    *AuditService
	now      func() time.Time
}

// NewInvitationService 创建邀请服务
func NewInvitationService(db *gorm.DB, resolver *PermissionResolver, audit *AuditService) *InvitationService {
	return &InvitationService{
		db:       db,
		log:      logger.GetLogger(),
		resolver: resolver,
		audit:    audit,
		now:      time.Now,
	}
}

// CreateInvitation 创建邀请
func (s *InvitationService) CreateInvitation(ctx context.Context, inviterID, organizationID uint, req *CreateInvitationRequest) (*models.Invitation, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	email := req.Email
	now := s.now()

	var invitation *models.Invitation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOrganization(tx, organizationID); err != nil {
			return err
		}
		if err := ensureRoleUsable(tx, organizationID, req.RoleID); err != nil {
			return err
		}

		// 检查是否已有待处理的邀请
		var pending int64
		if err := tx.Model(&models.Invitation{}).
			Where("organization_id = ? AND invitee_email = ? AND status = ? AND expires_at > ?",
				organizationID, email, models.InvitationStatusPending, now).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("查询邀请失败: %w", err)
		}
		if pending > 0 {
			return ErrInvitationPending
		}

		// 已是成员的用户无需邀请
		var members int64
		if err := tx.Model(&models.Membership{}).
			Joins("JOIN users ON users.id = memberships.user_id").
			Where("memberships.organization_id = ? AND LOWER(users.email) = ?", organizationID, email).
			Count(&members).Error; err != nil {
			return fmt.Errorf("查询成员关系失败: %w", err)
		}
		if members > 0 {
			return ErrMembershipExists
		}

		invitation = &models.Invitation{
			OrganizationID: organizationID,
			InviterID:      inviterID,
			InviteeEmail:   email,
			RoleID:         req.RoleID,
			Status:         models.InvitationStatusPending,
			Token:          strings.ReplaceAll(uuid.NewString(), "-", ""),
			ExpiresAt:      now.Add(InvitationTTL),
		}
		if err := tx.Omit(clause.Associations).Create(invitation).Error; err != nil {
			return fmt.Errorf("创建邀请失败: %w", err)
		}
		return s.audit.Record(tx, AuditEntry{
			OrganizationID: models.UintPtr(organizationID),
			ActorID:        models.UintPtr(inviterID),
			Action:         models.AuditInvitationCreated,
			TargetType:     models.AuditTargetInvitation,
			TargetID:       invitation.ID,
			Details:        map[string]interface{}{"email": email, "role_id": req.RoleID},
		})
	})
	if err != nil {
		return nil, err
	}
	return invitation, nil
}

// AcceptInvitation 接受邀请并加入组织
func (s *InvitationService) AcceptInvitation(ctx context.Context, token string, userID uint) (*models.Membership, error) {
	now := s.now()

	var invitation models.Invitation
	var membership *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadForInvitee(tx, token, userID, now, &invitation); err != nil {
			return err
		}

		m, err := createMembership(tx, invitation.OrganizationID, userID, invitation.RoleID, models.UintPtr(invitation.InviterID))
		if err != nil {
			return err
		}
		membership = m

		invitation.Accept(now)
		if err := tx.Model(&invitation).Updates(map[string]interface{}{
			"status":      invitation.Status,
			"accepted_at": invitation.AcceptedAt,
		}).Error; err != nil {
			return fmt.Errorf("更新邀请状态失败: %w", err)
		}
		return s.audit.Record(tx, AuditEntry{
			OrganizationID: models.UintPtr(invitation.OrganizationID),
			ActorID:        models.UintPtr(userID),
			Action:         models.AuditInvitationAccepted,
			TargetType:     models.AuditTargetInvitation,
			TargetID:       invitation.ID,
			Details:        map[string]interface{}{"membership_id": m.ID, "role_id": invitation.RoleID},
		})
	})
	if err != nil {
		return nil, err
	}

	s.resolver.InvalidateUser(ctx, userID, invitation.OrganizationID)
	s.log.WithFields(logrus.Fields{
		"user_id":         userID,
		"organization_id": invitation.OrganizationID,
		"inviter_id":      invitation.InviterID,
	}).Info("Invitation accepted")
	return membership, nil
}

// RejectInvitation 拒绝邀请
func (s *InvitationService) RejectInvitation(ctx context.Context, token string, userID uint) error {
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invitation models.Invitation
		if err := s.loadForInvitee(tx, token, userID, now, &invitation); err != nil {
			return err
		}
		invitation.Reject(now)
		if err := tx.Model(&invitation).Updates(map[string]interface{}{
			"status":      invitation.Status,
			"rejected_at": invitation.RejectedAt,
		}).Error; err != nil {
			return fmt.Errorf("更新邀请失败: %w", err)
		}
		return s.audit.Record(tx, AuditEntry{
			OrganizationID: models.UintPtr(invitation.OrganizationID),
			ActorID:        models.UintPtr(userID),
			Action:         models.AuditInvitationRejected,
			TargetType:     models.AuditTargetInvitation,
			TargetID:       invitation.ID,
			Details:        map[string]interface{}{"email": invitation.InviteeEmail},
		})
	})
}

// ListOrganizationInvitations 获取组织的邀请列表
func (s *InvitationService) ListOrganizationInvitations(ctx context.Context, organizationID uint, status string) ([]models.Invitation, error) {
	query := s.db.WithContext(ctx).Preload("Role").Where("organization_id = ?", organizationID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var invitations []models.Invitation
	if err := query.Order("created_at DESC, id DESC").Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("查询邀请列表失败: %w", err)
	}
	return invitations, nil
}

// ExpireStale 将过期的待处理邀请标记为 expired
func (s *InvitationService) ExpireStale(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("status = ? AND expires_at <= ?", models.InvitationStatusPending, s.now()).
		Update("status", models.InvitationStatusExpired)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.log.WithField("count", result.RowsAffected).Info("Stale invitations expired")
	}
	return result.RowsAffected, nil
}

// loadForInvitee 加载仍有效且属于该用户邮箱的邀请
func (s *InvitationService) loadForInvitee(tx *gorm.DB, token string, userID uint, now time.Time, invitation *models.Invitation) error {
	err := tx.Where("token = ?", token).First(invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvitationInvalid
	}
	if err != nil {
		return fmt.Errorf("查询邀请失败: %w", err)
	}
	if !invitation.IsValid(now) {
		return ErrInvitationInvalid
	}

	var user models.User
	err = tx.Select("id", "email").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("查询用户失败: %w", err)
	}
	if !strings.EqualFold(user.Email, invitation.InviteeEmail) {
		return ErrInvitationEmailMismatch
	}
	return nil
}

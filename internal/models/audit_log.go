package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog 角色与成员变更的审计记录，不随组织删除
type AuditLog struct {
	ID             uint              `json:"id" gorm:"primaryKey"`
	OrganizationID *uint             `json:"organization_id" gorm:"index"`
	ActorID        *uint             `json:"actor_id"`
	Action         string            `json:"action" gorm:"size:50;not null;index"`
	TargetType     string            `json:"target_type" gorm:"size:30;not null"`
	TargetID       uint              `json:"target_id"`
	Details        datatypes.JSONMap `json:"details"`
	CreatedAt      time.Time         `json:"created_at" gorm:"index"`
}

// TableName 表名
func (AuditLog) TableName() string {
	return "audit_logs"
}

// 审计动作
const (
	AuditRoleCreated            = "role.created"
	AuditRoleUpdated            = "role.updated"
	AuditRolePermissionsChanged = "role.permissions_changed"
	AuditRoleDeleted            = "role.deleted"
	AuditPermissionCreated      = "permission.created"
	AuditPermissionDeleted      = "permission.deleted"
	AuditMemberAdded            = "membership.added"
	AuditMemberRoleChanged      = "membership.role_changed"
	AuditMemberRemoved          = "membership.removed"
	AuditInvitationCreated      = "invitation.created"
	AuditInvitationAccepted     = "invitation.accepted"
	AuditInvitationRejected     = "invitation.rejected"
)

// 审计目标类型
const (
	AuditTargetRole       = "role"
	AuditTargetPermission = "permission"
	AuditTargetMembership = "membership"
	AuditTargetInvitation = "invitation"
)

package models

import (
	"time"
)

// Invitation 组织邀请
type Invitation struct {
	BaseModel
	OrganizationID uint       `json:"organization_id" gorm:"not null;index"`
	InviterID      uint       `json:"inviter_id" gorm:"not null"`
	InviteeEmail   string     `json:"invitee_email" gorm:"size:100;not null;index"`
	RoleID         uint       `json:"role_id" gorm:"not null"`
	Status         string     `json:"status" gorm:"size:20;not null;default:'pending'"`
	Token          string     `json:"token" gorm:"size:64;uniqueIndex"`
	ExpiresAt      time.Time  `json:"expires_at" gorm:"not null"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty"`

	Organization *Organization `json:"-" gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
	Inviter      *User         `json:"-" gorm:"foreignKey:InviterID;constraint:OnDelete:CASCADE"`
	Role         *Role         `json:"role,omitempty" gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
}

// TableName 表名
func (Invitation) TableName() string {
	return "invitations"
}

// 邀请状态常量
const (
	InvitationStatusPending  = "pending"
	InvitationStatusAccepted = "accepted"
	InvitationStatusRejected = "rejected"
	InvitationStatusExpired  = "expired"
)

// IsValid 邀请是否仍可接受
func (i *Invitation) IsValid(now time.Time) bool {
	return i.Status == InvitationStatusPending && now.Before(i.ExpiresAt)
}

// Accept 接受邀请
func (i *Invitation) Accept(now time.Time) {
	i.Status = InvitationStatusAccepted
	i.AcceptedAt = &now
}

// Reject 拒绝邀请
func (i *Invitation) Reject(now time.Time) {
	i.Status = InvitationStatusRejected
	i.RejectedAt = &now
}

package models

// Membership 用户在组织中的成员身份，每个 (用户, 组织) 只有一个角色
type Membership struct {
	BaseModel
	OrganizationID uint  `json:"organization_id" gorm:"not null;uniqueIndex:idx_membership_org_user,priority:1"`
	UserID         uint  `json:"user_id" gorm:"not null;uniqueIndex:idx_membership_org_user,priority:2;index"`
	RoleID         uint  `json:"role_id" gorm:"not null;index"`
	InvitedBy      *uint `json:"invited_by,omitempty"`

	User         *User         `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Organization *Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
	Role         *Role         `json:"role,omitempty" gorm:"foreignKey:RoleID;constraint:OnDelete:RESTRICT"`
	Inviter      *User         `json:"-" gorm:"foreignKey:InvitedBy;constraint:OnDelete:SET NULL"`
}

// TableName 表名
func (Membership) TableName() string {
	return "memberships"
}

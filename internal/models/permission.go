package models

import "strings"

// Permission 权限，slug 恒为 "{action}:{resource}"
type Permission struct {
	BaseModel
	Slug               string `json:"slug" gorm:"uniqueIndex;size:100;not null"`
	Resource           string `json:"resource" gorm:"size:50;not null;index"`
	Action             string `json:"action" gorm:"size:30;not null"`
	Description        string `json:"description" gorm:"size:255"`
	IsSystemPermission bool   `json:"is_system_permission" gorm:"not null;default:false"`
	OrganizationID     *uint  `json:"organization_id,omitempty" gorm:"index"` // 为空表示系统权限

	Organization *Organization `json:"-" gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
}

// TableName 表名
func (Permission) TableName() string {
	return "permissions"
}

// 权限操作常量，集合是开放的
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionManage = "manage"
	ActionView   = "view"
	ActionExport = "export"
)

// 受保护的资源
const (
	ResourceClient       = "client"
	ResourceDeal         = "deal"
	ResourceTask         = "task"
	ResourceProduct      = "product"
	ResourceUser         = "user"
	ResourceReport       = "report"
	ResourceTeam         = "team"
	ResourceOrganization = "organization"
	ResourceAllStages    = "all_stages"
)

// 跨领域的特殊权限
const (
	PermManageTeam         = "manage:team"
	PermViewAllStages      = "view:all_stages"
	PermManageOrganization = "manage:organization"
)

// BuildSlug 拼接权限标识
func BuildSlug(action, resource string) string {
	return action + ":" + resource
}

// ParseSlug 拆分权限标识
func ParseSlug(slug string) (action, resource string, ok bool) {
	action, resource, ok = strings.Cut(slug, ":")
	if !ok || action == "" || resource == "" || strings.Contains(resource, ":") {
		return "", "", false
	}
	return action, resource, true
}

// SlugConsistent slug 是否与 action/resource 一致
func (p *Permission) SlugConsistent() bool {
	return p.Slug == BuildSlug(p.Action, p.Resource)
}

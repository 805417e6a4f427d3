package models

import "time"

// Role 角色，OrganizationID 为空表示所有组织可用的系统角色
type Role struct {
	BaseModel
	Name           string `json:"name" gorm:"size:100;not null;uniqueIndex:idx_roles_org_name,priority:2"`
	Description    string `json:"description" gorm:"size:255"`
	OrganizationID *uint  `json:"organization_id" gorm:"uniqueIndex:idx_roles_org_name,priority:1"`
	IsSystemRole   bool   `json:"is_system_role" gorm:"not null;default:false"`

	Organization *Organization `json:"-" gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`

	// 通过 role_permissions 显式查询填充
	Permissions []Permission `json:"permissions" gorm:"-"`
}

// TableName 表名
func (Role) TableName() string {
	return "roles"
}

// 系统角色名称
const (
	RoleGerenteGeral    = "Gerente Geral"
	RoleAdministrativo  = "Administrativo"
	RolePosVenda        = "Pós-Venda"
	RoleGerenteDeVendas = "Gerente de Vendas"
	RoleVendedor        = "Vendedor"
)

// UsableBy 角色能否被指定组织的成员持有
func (r *Role) UsableBy(organizationID uint) bool {
	return r.OrganizationID == nil || *r.OrganizationID == organizationID
}

// RolePermission 角色权限关联，删除角色或权限时级联删除
type RolePermission struct {
	RoleID       uint      `json:"role_id" gorm:"primaryKey;autoIncrement:false"`
	PermissionID uint      `json:"permission_id" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt    time.Time `json:"created_at"`

	Role       *Role       `json:"-" gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	Permission *Permission `json:"-" gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE"`
}

// TableName 表名
func (RolePermission) TableName() string {
	return "role_permissions"
}

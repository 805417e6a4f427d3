package models

import "sort"

// RoleSummary 解析结果中的角色信息
type RoleSummary struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	OrganizationID *uint  `json:"organization_id"`
	IsSystemRole   bool   `json:"is_system_role"`
}

// PermissionInfo 解析结果中的单个权限
type PermissionInfo struct {
	ID                 uint   `json:"id"`
	Slug               string `json:"slug"`
	Resource           string `json:"resource"`
	Action             string `json:"action"`
	Description        string `json:"description"`
	IsSystemPermission bool   `json:"is_system_permission"`
}

// UserPermissions 用户在某组织中的有效权限集合
type UserPermissions struct {
	UserID         uint             `json:"user_id"`
	OrganizationID uint             `json:"organization_id"`
	MembershipID   uint             `json:"membership_id"`
	Role           RoleSummary      `json:"role"`
	Permissions    []PermissionInfo `json:"permissions"`
}

// Has 是否持有 slug，nil 接收者视为无权限
func (u *UserPermissions) Has(slug string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p.Slug == slug {
			return true
		}
	}
	return false
}

// HasAny 是否持有任一 slug，空列表为 false
func (u *UserPermissions) HasAny(slugs ...string) bool {
	for _, s := range slugs {
		if u.Has(s) {
			return true
		}
	}
	return false
}

// HasAll 是否持有全部 slug，空列表为 false
func (u *UserPermissions) HasAll(slugs ...string) bool {
	if len(slugs) == 0 {
		return false
	}
	for _, s := range slugs {
		if !u.Has(s) {
			return false
		}
	}
	return true
}

// Slugs 排序后的权限标识
func (u *UserPermissions) Slugs() []string {
	if u == nil {
		return nil
	}
	out := make([]string, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		out = append(out, p.Slug)
	}
	sort.Strings(out)
	return out
}

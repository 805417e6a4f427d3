package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// 业务错误，调用方使用 errors.Is 判断
var (
	ErrInvalidInput                = errors.New("参数错误")
	ErrOrganizationNotFound        = errors.New("组织不存在")
	ErrUserNotFound                = errors.New("用户不存在")
	ErrRoleNotFound                = errors.New("角色不存在")
	ErrPermissionNotFound          = errors.New("权限不存在")
	ErrMembershipNotFound          = errors.New("成员关系不存在")
	ErrMembershipExists            = errors.New("用户已是该组织成员")
	ErrRoleInUse                   = errors.New("角色仍被成员使用，无法删除")
	ErrSystemRoleImmutable         = errors.New("系统角色不允许修改或删除")
	ErrSystemPermissionImmutable   = errors.New("系统权限不允许删除")
	ErrRoleNameTaken               = errors.New("角色名称已存在")
	ErrPermissionSlugTaken         = errors.New("权限标识已存在")
	ErrCrossOrganizationPermission = errors.New("不能引用其他组织的权限")
	ErrRoleNotUsable               = errors.New("该角色不属于此组织")
	ErrInvitationInvalid           = errors.New("邀请不存在或已失效")
	ErrInvitationPending           = errors.New("该邮箱已有待处理的邀请")
	ErrInvitationEmailMismatch     = errors.New("邀请邮箱不匹配")
	ErrInvalidCredentials          = errors.New("邮箱或密码错误")
	ErrEmailTaken                  = errors.New("邮箱已被使用")
	ErrOrganizationSlugTaken       = errors.New("组织标识已被使用")
)

// isDuplicateKey 唯一约束冲突，兼容未开启 TranslateError 的连接
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// isForeignKeyViolation 外键约束冲突
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

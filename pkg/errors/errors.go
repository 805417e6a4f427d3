package errors

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam    = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeTooManyRequests = 429
	CodeServerError     = 500
)

// 业务错误码 (10000+)
const (
	CodeRoleInUse           = 10001 // 角色仍被成员引用
	CodeSystemRoleImmutable = 10002 // 系统角色不可修改
	CodeCrossOrganization   = 10003 // 引用了其他组织的权限
	CodeInvitationInvalid   = 10004 // 邀请无效或已过期
	CodeMembershipExists    = 10005 // 用户已是组织成员
)

package handlers

import (
	"errors"
	"strconv"

	"crmhub/internal/services"
	codes "crmhub/pkg/errors"
	"crmhub/pkg/logger"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError 将业务错误映射为响应码，未知错误只返回 fallback 文案
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, services.ErrOrganizationNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrRoleNotFound),
		errors.Is(err, services.ErrPermissionNotFound),
		errors.Is(err, services.ErrMembershipNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, services.ErrRoleNameTaken),
		errors.Is(err, services.ErrPermissionSlugTaken),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrOrganizationSlugTaken),
		errors.Is(err, services.ErrInvitationPending):
		response.Conflict(c, err.Error())
	case errors.Is(err, services.ErrMembershipExists):
		response.Error(c, codes.CodeMembershipExists, err.Error())
	case errors.Is(err, services.ErrRoleInUse):
		response.Error(c, codes.CodeRoleInUse, err.Error())
	case errors.Is(err, services.ErrSystemRoleImmutable),
		errors.Is(err, services.ErrSystemPermissionImmutable):
		response.Error(c, codes.CodeSystemRoleImmutable, err.Error())
	case errors.Is(err, services.ErrCrossOrganizationPermission),
		errors.Is(err, services.ErrRoleNotUsable):
		response.Error(c, codes.CodeCrossOrganization, err.Error())
	case errors.Is(err, services.ErrInvitationInvalid),
		errors.Is(err, services.ErrInvitationEmailMismatch):
		response.Error(c, codes.CodeInvitationInvalid, err.Error())
	default:
		logger.GetLogger().WithError(err).WithField("path", c.FullPath()).Error(fallback)
		response.ServerError(c, fallback)
	}
}

// parseID 解析路径中的无符号ID
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "ID格式错误")
		return 0, false
	}
	return uint(id), true
}

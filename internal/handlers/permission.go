package handlers

import (
	"crmhub/internal/middleware"
	"crmhub/internal/services"
	"crmhub/pkg/pagination"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type PermissionHandler struct {
	service *services.PermissionService
}

func NewPermissionHandler(service *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{
		service: service,
	}
}

// GetAll 分页获取系统权限与当前组织的自定义权限
func (h *PermissionHandler) GetAll(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)
	orgID, _ := middleware.CurrentOrganizationID(c)

	filter := services.PermissionFilter{
		Resource:       c.Query("resource"),
		Action:         c.Query("action"),
		OrganizationID: orgID,
	}
	permissions, total, err := h.service.GetWithPage(c.Request.Context(), filter, pageParams)
	if err != nil {
		respondError(c, err, "查询失败")
		return
	}

	response.SuccessWithPage(c, permissions, pagination.NewPageInfo(pageParams, total))
}

// Create 创建组织自定义权限
func (h *PermissionHandler) Create(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	var req services.CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	permission, err := h.service.CreateOrganizationPermission(c.Request.Context(), orgID, &req, &actorID)
	if err != nil {
		respondError(c, err, "创建失败")
		return
	}
	response.Success(c, permission)
}

// Delete 删除组织自定义权限
func (h *PermissionHandler) Delete(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	if err := h.service.DeleteOrganizationPermission(c.Request.Context(), orgID, id, &actorID); err != nil {
		respondError(c, err, "删除失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

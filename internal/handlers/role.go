package handlers

import (
	"crmhub/internal/middleware"
	"crmhub/internal/services"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type CreateRoleRequest struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	PermissionIDs []uint `json:"permission_ids"`
}

type AssignPermissionsRequest struct {
	PermissionIDs []uint `json:"permission_ids"`
}

type RoleHandler struct {
	service *services.RoleService
}

func NewRoleHandler(service *services.RoleService) *RoleHandler {
	return &RoleHandler{
		service: service,
	}
}

// Create 创建组织自定义角色
func (h *RoleHandler) Create(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	role, err := h.service.CreateCustomRole(c.Request.Context(), &services.CreateCustomRoleRequest{
		Name:           req.Name,
		Description:    req.Description,
		OrganizationID: orgID,
		PermissionIDs:  req.PermissionIDs,
		ActorID:        &actorID,
	})
	if err != nil {
		respondError(c, err, "创建失败")
		return
	}
	response.Success(c, role)
}

// GetByID 获取角色及其权限；其他组织的自定义角色视为不存在
func (h *RoleHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	role, err := h.service.GetRoleByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "查询失败")
		return
	}
	orgID, _ := middleware.CurrentOrganizationID(c)
	if role == nil || !role.UsableBy(orgID) {
		response.NotFound(c, "角色不存在")
		return
	}
	response.Success(c, role)
}

// GetByOrganization 组织可用的全部角色
func (h *RoleHandler) GetByOrganization(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}

	roles, err := h.service.GetOrganizationRoles(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, err, "查询失败")
		return
	}
	response.Success(c, roles)
}

// Update 更新角色
func (h *RoleHandler) Update(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	role, err := h.service.UpdateRole(c.Request.Context(), orgID, id, &req, &actorID)
	if err != nil {
		respondError(c, err, "更新失败")
		return
	}
	response.Success(c, role)
}

// AssignPermissions 替换角色权限
func (h *RoleHandler) AssignPermissions(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AssignPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	role, err := h.service.SetRolePermissions(c.Request.Context(), orgID, id, req.PermissionIDs, &actorID)
	if err != nil {
		respondError(c, err, "分配权限失败")
		return
	}
	response.Success(c, role)
}

// Delete 删除角色
func (h *RoleHandler) Delete(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	if err := h.service.DeleteRole(c.Request.Context(), orgID, id, &actorID); err != nil {
		respondError(c, err, "删除失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

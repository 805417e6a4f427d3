package handlers

import (
	"crmhub/internal/middleware"
	"crmhub/internal/services"
	"crmhub/pkg/pagination"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type AddMemberRequest struct {
	UserID uint `json:"user_id" binding:"required"`
	RoleID uint `json:"role_id" binding:"required"`
}

type ChangeRoleRequest struct {
	RoleID uint `json:"role_id" binding:"required"`
}

type MembershipHandler struct {
	service *services.MembershipService
}

func NewMembershipHandler(service *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{
		service: service,
	}
}

// List 分页获取组织成员
func (h *MembershipHandler) List(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	pageParams := pagination.ParsePageParams(c)

	members, total, err := h.service.ListMembers(c.Request.Context(), orgID, pageParams)
	if err != nil {
		respondError(c, err, "查询失败")
		return
	}
	response.SuccessWithPage(c, members, pagination.NewPageInfo(pageParams, total))
}

// Add 添加成员
func (h *MembershipHandler) Add(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	membership, err := h.service.AddMember(c.Request.Context(), orgID, &services.AddMemberRequest{
		UserID:    req.UserID,
		RoleID:    req.RoleID,
		InvitedBy: &actorID,
	})
	if err != nil {
		respondError(c, err, "添加成员失败")
		return
	}
	response.Success(c, membership)
}

// ChangeRole 修改成员角色
func (h *MembershipHandler) ChangeRole(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	membership, err := h.service.ChangeRole(c.Request.Context(), orgID, userID, req.RoleID, &actorID)
	if err != nil {
		respondError(c, err, "修改角色失败")
		return
	}
	response.Success(c, membership)
}

// Remove 移除成员
func (h *MembershipHandler) Remove(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	if err := h.service.RemoveMember(c.Request.Context(), orgID, userID, &actorID); err != nil {
		respondError(c, err, "移除成员失败")
		return
	}
	response.SuccessWithMessage(c, "移除成功", nil)
}

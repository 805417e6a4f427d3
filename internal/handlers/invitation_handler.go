package handlers

import (
	"crmhub/internal/middleware"
	"crmhub/internal/services"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// InvitationHandler 邀请处理器
type InvitationHandler struct {
	invitationService *services.InvitationService
}

// NewInvitationHandler 创建邀请处理器
func NewInvitationHandler(invitationService *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{
		invitationService: invitationService,
	}
}

// CreateInvitation 创建邀请
// @Summary 邀请用户加入组织
// @Tags 邀请管理
// @Accept json
// @Produce json
// @Param org_id path int true "组织ID"
// @Param request body services.CreateInvitationRequest true "邀请信息"
// @Success 200 {object} response.Response{data=models.Invitation}
// @Router /api/v1/organizations/{org_id}/invitations [post]
func (h *InvitationHandler) CreateInvitation(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	var req services.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	inviterID, _ := middleware.CurrentUserID(c)
	invitation, err := h.invitationService.CreateInvitation(c.Request.Context(), inviterID, orgID, &req)
	if err != nil {
		respondError(c, err, "创建邀请失败")
		return
	}
	response.Success(c, invitation)
}

// ListInvitations 获取组织的邀请列表
// @Summary 组织邀请列表
// @Tags 邀请管理
// @Param org_id path int true "组织ID"
// @Param status query string false "状态筛选"
// @Router /api/v1/organizations/{org_id}/invitations [get]
func (h *InvitationHandler) ListInvitations(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}

	invitations, err := h.invitationService.ListOrganizationInvitations(c.Request.Context(), orgID, c.Query("status"))
	if err != nil {
		respondError(c, err, "查询邀请失败")
		return
	}
	response.Success(c, invitations)
}

// AcceptInvitation 接受邀请
// @Summary 接受邀请
// @Tags 邀请管理
// @Param token path string true "邀请令牌"
// @Router /api/v1/invitations/{token}/accept [post]
func (h *InvitationHandler) AcceptInvitation(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	membership, err := h.invitationService.AcceptInvitation(c.Request.Context(), c.Param("token"), userID)
	if err != nil {
		respondError(c, err, "接受邀请失败")
		return
	}
	response.SuccessWithMessage(c, "已加入组织", membership)
}

// RejectInvitation 拒绝邀请
// @Summary 拒绝邀请
// @Tags 邀请管理
// @Param token path string true "邀请令牌"
// @Router /api/v1/invitations/{token}/reject [post]
func (h *InvitationHandler) RejectInvitation(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	if err := h.invitationService.RejectInvitation(c.Request.Context(), c.Param("token"), userID); err != nil {
		respondError(c, err, "拒绝邀请失败")
		return
	}
	response.SuccessWithMessage(c, "已拒绝邀请", nil)
}

package handlers

import (
	"crmhub/internal/middleware"
	"crmhub/internal/models"
	"crmhub/internal/services"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// 批量检查模式
const (
	CheckModeAny = "any"
	CheckModeAll = "all"
)

// MeHandler 当前用户在当前组织内的权限视图
type MeHandler struct {
	resolver          *services.PermissionResolver
	membershipService *services.MembershipService
}

func NewMeHandler(resolver *services.PermissionResolver, membershipService *services.MembershipService) *MeHandler {
	return &MeHandler{
		resolver:          resolver,
		membershipService: membershipService,
	}
}

type CheckPermissionsRequest struct {
	Slugs []string `json:"slugs" binding:"required,min=1,dive,required"`
	Mode  string   `json:"mode" binding:"omitempty,oneof=any all"`
}

type CheckPermissionsResponse struct {
	Allowed bool            `json:"allowed"`
	Mode    string          `json:"mode"`
	Results map[string]bool `json:"results"`
}

// StagesResponse 阶段划分与逐阶段明细
type StagesResponse struct {
	services.AccessibleStages
	Stages []services.StageAccess `json:"stages"`
}

// Permissions 当前组织内的角色与权限；非成员返回空结果而不是错误
func (h *MeHandler) Permissions(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	orgID, _ := middleware.CurrentOrganizationID(c)

	perms := h.resolver.GetUserPermissions(c.Request.Context(), userID, orgID)
	response.Success(c, perms)
}

// Stages 可编辑与只读阶段
func (h *MeHandler) Stages(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	orgID, _ := middleware.CurrentOrganizationID(c)

	policy := h.resolver.StagePolicy(c.Request.Context(), userID, orgID)
	response.Success(c, StagesResponse{
		AccessibleStages: policy.GetAccessibleStages(),
		Stages:           policy.DescribeAll(),
	})
}

// StageAccess 单个阶段的访问明细
func (h *MeHandler) StageAccess(c *gin.Context) {
	stage, ok := models.ParseStage(c.Param("stage"))
	if !ok {
		response.BadRequest(c, "销售阶段无效")
		return
	}
	userID, _ := middleware.CurrentUserID(c)
	orgID, _ := middleware.CurrentOrganizationID(c)

	policy := h.resolver.StagePolicy(c.Request.Context(), userID, orgID)
	response.Success(c, policy.Describe(stage))
}

// Check 批量检查权限
func (h *MeHandler) Check(c *gin.Context) {
	var req CheckPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	if req.Mode == "" {
		req.Mode = CheckModeAny
	}
	userID, _ := middleware.CurrentUserID(c)
	orgID, _ := middleware.CurrentOrganizationID(c)
	ctx := c.Request.Context()

	// 一次解析得到逐项结果，总体判定仍走解析器的判定接口
	perms := h.resolver.GetUserPermissions(ctx, userID, orgID)
	results := make(map[string]bool, len(req.Slugs))
	for _, slug := range req.Slugs {
		results[slug] = perms.Has(slug)
	}

	var allowed bool
	if req.Mode == CheckModeAll {
		allowed = h.resolver.HasAllPermissions(ctx, userID, orgID, req.Slugs)
	} else {
		allowed = h.resolver.HasAnyPermission(ctx, userID, orgID, req.Slugs)
	}

	response.Success(c, CheckPermissionsResponse{
		Allowed: allowed,
		Mode:    req.Mode,
		Results: results,
	})
}

// Organizations 当前用户加入的所有组织
func (h *MeHandler) Organizations(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	memberships, err := h.membershipService.ListUserMemberships(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "查询组织失败")
		return
	}
	response.Success(c, memberships)
}

package handlers

import (
	"errors"
	"time"

	"crmhub/internal/middleware"
	"crmhub/internal/models"
	"crmhub/internal/services"
	"crmhub/pkg/jwt"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService       *services.UserService
	membershipService *services.MembershipService
	jwtManager        *jwt.Manager
}

func NewAuthHandler(userService *services.UserService, membershipService *services.MembershipService, jwtManager *jwt.Manager) *AuthHandler {
	return &AuthHandler{
		userService:       userService,
		membershipService: membershipService,
		jwtManager:        jwtManager,
	}
}

type LoginRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required"`
	OrganizationID uint   `json:"organization_id"`
}

type SwitchOrganizationRequest struct {
	OrganizationID uint `json:"organization_id" binding:"required"`
}

type LoginResponse struct {
	Token          string       `json:"token"`
	ExpiresAt      int64        `json:"expires_at"`
	OrganizationID uint         `json:"organization_id"`
	User           *models.User `json:"user"`
}

// Register 注册用户
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "注册失败")
		return
	}
	response.Success(c, user)
}

// Login 用户登录；未指定组织时进入用户加入最早的组织
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "登录失败")
		return
	}

	orgID := req.OrganizationID
	if orgID == 0 {
		memberships, err := h.membershipService.ListUserMemberships(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, err, "登录失败")
			return
		}
		if len(memberships) > 0 {
			orgID = memberships[0].OrganizationID
		}
	} else if !h.isMember(c, orgID, user.ID) {
		return
	}

	h.issue(c, user, orgID)
}

// SwitchOrganization 切换到用户所属的另一个组织，签发新令牌
func (h *AuthHandler) SwitchOrganization(c *gin.Context) {
	var req SwitchOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "请先登录")
		return
	}
	if !h.isMember(c, req.OrganizationID, user.ID) {
		return
	}
	h.issue(c, user, req.OrganizationID)
}

func (h *AuthHandler) isMember(c *gin.Context, orgID, userID uint) bool {
	_, err := h.membershipService.GetMembership(c.Request.Context(), orgID, userID)
	if errors.Is(err, services.ErrMembershipNotFound) {
		response.Forbidden(c, "不是该组织成员")
		return false
	}
	if err != nil {
		respondError(c, err, "查询成员关系失败")
		return false
	}
	return true
}

func (h *AuthHandler) issue(c *gin.Context, user *models.User, orgID uint) {
	token, err := h.jwtManager.GenerateToken(user.ID, orgID, user.Email)
	if err != nil {
		response.ServerError(c, "生成Token失败")
		return
	}
	response.Success(c, LoginResponse{
		Token:          token,
		ExpiresAt:      time.Now().Add(h.jwtManager.TokenDuration()).Unix(),
		OrganizationID: orgID,
		User:           user,
	})
}

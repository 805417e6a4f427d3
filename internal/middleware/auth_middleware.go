package middleware

import (
	"strconv"
	"strings"

	"crmhub/internal/models"
	"crmhub/internal/services"
	"crmhub/pkg/jwt"
	"crmhub/pkg/logger"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 上下文键
const (
	ctxUser           = "user"
	ctxUserID         = "user_id"
	ctxOrganizationID = "organization_id"
	ctxClaims         = "claims"
)

// AuthMiddleware 登录与权限中间件，权限判定全部委托给 PermissionResolver
type AuthMiddleware struct {
	userService *services.UserService
	resolver    *services.PermissionResolver
	jwtManager  *jwt.Manager
	log         *logrus.Logger
}

func NewAuthMiddleware(userService *services.UserService, resolver *services.PermissionResolver, jwtManager *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{
		userService: userService,
		resolver:    resolver,
		jwtManager:  jwtManager,
		log:         logger.GetLogger(),
	}
}

// RequireLogin 校验 Bearer 令牌并加载用户
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		claims, err := m.jwtManager.VerifyToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		user, err := m.userService.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Unauthorized(c, "用户不存在")
			c.Abort()
			return
		}
		if !user.IsActive() {
			response.Unauthorized(c, "用户已被禁用")
			c.Abort()
			return
		}

		c.Set(ctxUser, user)
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxOrganizationID, claims.OrganizationID)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// RequireSameOrganization 路径中的 :org_id 必须是令牌当前所在的组织，且成员关系仍然有效
func (m *AuthMiddleware) RequireSameOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := CurrentUserID(c)
		orgID, ok := CurrentOrganizationID(c)
		if !ok {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		target, err := strconv.ParseUint(c.Param("org_id"), 10, 32)
		if err != nil {
			response.BadRequest(c, "组织ID格式错误")
			c.Abort()
			return
		}
		if uint(target) != orgID {
			response.Forbidden(c, "无权访问其他组织的数据")
			c.Abort()
			return
		}
		// 令牌签发后成员可能已被移除；解析失败同样拒绝
		if m.resolver.GetUserPermissions(c.Request.Context(), userID, orgID) == nil {
			m.deny(c, userID, orgID, "membership")
			return
		}
		c.Next()
	}
}

// RequirePermission 要求持有指定权限；解析失败同样拒绝
func (m *AuthMiddleware) RequirePermission(slug string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, orgID, ok := m.identity(c)
		if !ok {
			return
		}
		if !m.resolver.HasPermission(c.Request.Context(), userID, orgID, slug) {
			m.deny(c, userID, orgID, slug)
			return
		}
		c.Next()
	}
}

// RequireAnyPermission 持有任一权限即可；供业务路由（客户、报表等）组合使用
func (m *AuthMiddleware) RequireAnyPermission(slugs ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, orgID, ok := m.identity(c)
		if !ok {
			return
		}
		if !m.resolver.HasAnyPermission(c.Request.Context(), userID, orgID, slugs) {
			m.deny(c, userID, orgID, strings.Join(slugs, "|"))
			return
		}
		c.Next()
	}
}

// RequireStageAction 对路径中的 :stage 要求 "{action}:{stage}" 权限；供商机等按阶段划分的业务路由使用
func (m *AuthMiddleware) RequireStageAction(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		stage, valid := models.ParseStage(c.Param("stage"))
		if !valid {
			response.BadRequest(c, "销售阶段无效")
			c.Abort()
			return
		}
		userID, orgID, ok := m.identity(c)
		if !ok {
			return
		}
		slug := stage.Slug(action)
		if !m.resolver.HasPermission(c.Request.Context(), userID, orgID, slug) {
			m.deny(c, userID, orgID, slug)
			return
		}
		c.Next()
	}
}

// CombineMiddleware 组合中间件（登录 + 同组织 + 权限），用于组织范围的路由组
func (m *AuthMiddleware) CombineMiddleware(slug string) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.RequireLogin(),
		m.RequireSameOrganization(),
		m.RequirePermission(slug),
	}
}

func (m *AuthMiddleware) identity(c *gin.Context) (uint, uint, bool) {
	userID, ok := CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "请先登录")
		c.Abort()
		return 0, 0, false
	}
	orgID, _ := CurrentOrganizationID(c)
	return userID, orgID, true
}

// deny 策略拒绝与解析失败对调用方不可区分
func (m *AuthMiddleware) deny(c *gin.Context, userID, orgID uint, required string) {
	m.log.WithFields(logrus.Fields{
		"user_id":         userID,
		"organization_id": orgID,
		"required":        required,
		"path":            c.FullPath(),
	}).Debug("Permission denied")
	response.Forbidden(c, "权限不足")
	c.Abort()
}

// ========== 上下文读取 ==========

// CurrentUserID 当前登录用户ID
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// CurrentOrganizationID 令牌绑定的组织ID
func CurrentOrganizationID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxOrganizationID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// CurrentUser 当前登录用户
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

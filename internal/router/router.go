package router

import (
	"crmhub/internal/handlers"
	"crmhub/internal/middleware"
	"crmhub/internal/models"
	"crmhub/internal/services"
	"crmhub/pkg/config"
	"crmhub/pkg/jwt"
	"crmhub/pkg/metrics"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies 路由所需的共享组件
type Dependencies struct {
	Config   *config.Config
	DB       *gorm.DB
	Resolver *services.PermissionResolver
	Metrics  *metrics.Metrics
	JWT      *jwt.Manager
	Cache    handlers.Pinger // 可为 nil
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(deps.Config.CORS))

	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps Dependencies) {
	audit := services.NewAuditService(deps.DB)
	userService := services.NewUserService(deps.DB)
	membershipService := services.NewMembershipService(deps.DB, deps.Resolver, audit)
	roleService := services.NewRoleService(deps.DB, deps.Resolver, audit)
	permissionService := services.NewPermissionService(deps.DB, deps.Resolver, audit)
	invitationService := services.NewInvitationService(deps.DB, deps.Resolver, audit)
	organizationService := services.NewOrganizationService(deps.DB, deps.Resolver, audit)

	auth := middleware.NewAuthMiddleware(userService, deps.Resolver, deps.JWT)
	limiter := middleware.NewRateLimiter(deps.Config.RateLimit)

	systemHandler := handlers.NewSystemHandler(deps.DB, deps.Cache)
	authHandler := handlers.NewAuthHandler(userService, membershipService, deps.JWT)
	meHandler := handlers.NewMeHandler(deps.Resolver, membershipService)
	permissionHandler := handlers.NewPermissionHandler(permissionService)
	roleHandler := handlers.NewRoleHandler(roleService)
	organizationHandler := handlers.NewOrganizationHandler(organizationService)
	membershipHandler := handlers.NewMembershipHandler(membershipService)
	invitationHandler := handlers.NewInvitationHandler(invitationService)
	auditHandler := handlers.NewAuditHandler(audit)

	api := router.Group("/api/v1")
	{
		api.GET("/health", systemHandler.Health)
		if deps.Metrics != nil {
			api.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
		}

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", limiter.Middleware(), authHandler.Register)
			authGroup.POST("/login", limiter.Middleware(), authHandler.Login)
			authGroup.POST("/switch-organization", auth.RequireLogin(), authHandler.SwitchOrganization)
		}

		me := api.Group("/me", auth.RequireLogin())
		{
			me.GET("/permissions", meHandler.Permissions)
			me.GET("/stages", meHandler.Stages)
			me.POST("/check", meHandler.Check)
			me.GET("/organizations", meHandler.Organizations)
		}

		api.GET("/permissions", auth.RequireLogin(), permissionHandler.GetAll)
		api.GET("/roles/:id", auth.RequireLogin(), roleHandler.GetByID)

		invitations := api.Group("/invitations", auth.RequireLogin())
		{
			invitations.POST("/:token/accept", invitationHandler.AcceptInvitation)
			invitations.POST("/:token/reject", invitationHandler.RejectInvitation)
		}

		api.POST("/organizations", auth.RequireLogin(), limiter.Middleware(), organizationHandler.Create)

		// 组织范围内的路由：令牌所在组织必须与路径一致
		org := api.Group("/organizations/:org_id", auth.RequireLogin(), auth.RequireSameOrganization())
		{
			org.GET("", organizationHandler.GetByID)
			org.DELETE("", auth.RequirePermission(models.PermManageOrganization), organizationHandler.Delete)

			manageOrg := auth.RequirePermission(models.PermManageOrganization)

			org.GET("/roles", roleHandler.GetByOrganization)
			org.POST("/roles", manageOrg, limiter.Middleware(), roleHandler.Create)
			org.PUT("/roles/:id", manageOrg, limiter.Middleware(), roleHandler.Update)
			org.PUT("/roles/:id/permissions", manageOrg, limiter.Middleware(), roleHandler.AssignPermissions)
			org.DELETE("/roles/:id", manageOrg, limiter.Middleware(), roleHandler.Delete)

			org.POST("/permissions", manageOrg, limiter.Middleware(), permissionHandler.Create)
			org.DELETE("/permissions/:id", manageOrg, limiter.Middleware(), permissionHandler.Delete)

			org.GET("/audit-logs", manageOrg, auditHandler.List)

			org.GET("/stages/:stage/access", meHandler.StageAccess)
		}

		// 团队管理：登录 + 同组织 + manage:team
		team := api.Group("/organizations/:org_id", auth.CombineMiddleware(models.PermManageTeam)...)
		{
			team.GET("/members", membershipHandler.List)
			team.POST("/members", limiter.Middleware(), membershipHandler.Add)
			team.PUT("/members/:user_id/role", limiter.Middleware(), membershipHandler.ChangeRole)
			team.DELETE("/members/:user_id", limiter.Middleware(), membershipHandler.Remove)

			team.GET("/invitations", invitationHandler.ListInvitations)
			team.POST("/invitations", limiter.Middleware(), invitationHandler.CreateInvitation)
		}
	}
}

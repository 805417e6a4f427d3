package services

import (
	"context"
	"sort"
	"time"

	"crmhub/internal/models"
	"crmhub/pkg/cache"
	"crmhub/pkg/logger"
	"crmhub/pkg/metrics"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 判定操作名，用于日志与指标
const (
	opGetUserPermissions = "get_user_permissions"
	opHasPermission      = "has_permission"
	opHasAnyPermission   = "has_any_permission"
	opHasAllPermissions  = "has_all_permissions"
)

// 缓存失效触发来源
const (
	triggerMembership     = "membership"
	triggerRolePermission = "role_permission"
	triggerOrganization   = "organization"
)

// PermissionResolver 解析用户在组织内的有效权限。
// 所有查询失败都记录日志并按无权限处理，从不返回错误。
type PermissionResolver struct {
	db      *gorm.DB
	log     *logrus.Logger
	metrics *metrics.Metrics
	cache   *permissionCache
}

// ResolverOption 解析器选项
type ResolverOption func(*PermissionResolver)

// WithCache 启用 (用户, 组织) 粒度的权限缓存
func WithCache(store cache.Store) ResolverOption {
	return func(r *PermissionResolver) {
		if store == nil {
			return
		}
		if _, noop := store.(cache.NoopStore); noop {
			return
		}
		r.cache = &permissionCache{store: store}
	}
}

// WithMetrics 记录判定指标
func WithMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *PermissionResolver) { r.metrics = m }
}

// WithLogger 指定日志实例
func WithLogger(l *logrus.Logger) ResolverOption {
	return func(r *PermissionResolver) { r.log = l }
}

// NewPermissionResolver 创建解析器，默认不缓存
func NewPermissionResolver(db *gorm.DB, opts ...ResolverOption) *PermissionResolver {
	r := &PermissionResolver{
		db:  db,
		log: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache != nil {
		r.cache.log = r.log
		r.cache.metrics = r.metrics
	}
	return r
}

// resolvedRow 成员→角色→映射→权限 连接查询的一行
type resolvedRow struct {
	MembershipID          uint
	RoleID                uint
	RoleName              string
	RoleDescription       string
	RoleOrganizationID    *uint
	IsSystemRole          bool
	PermissionID          *uint
	Slug                  *string
	Resource              *string
	Action                *string
	PermissionDescription *string
	IsSystemPermission    *bool
}

// GetUserPermissions 返回用户在组织内的角色与权限；无成员关系或查询失败时返回 nil。
// 角色没有任何权限映射时返回空权限列表而不是 nil。
func (r *PermissionResolver) GetUserPermissions(ctx context.Context, userID, organizationID uint) *models.UserPermissions {
	up, err := r.resolve(ctx, userID, organizationID)
	if err != nil {
		r.failClosed(opGetUserPermissions, userID, organizationID, err)
		return nil
	}
	return up
}

func (r *PermissionResolver) resolve(ctx context.Context, userID, organizationID uint) (*models.UserPermissions, error) {
	key := MemberKey{UserID: userID, OrganizationID: organizationID}
	if r.cache != nil {
		if up, ok := r.cache.get(ctx, key); ok {
			return up, nil
		}
	}

	up, err := r.load(ctx, userID, organizationID)
	if err != nil {
		return nil, err
	}
	if up != nil && r.cache != nil {
		r.cache.set(ctx, up)
	}
	return up, nil
}

func (r *PermissionResolver) load(ctx context.Context, userID, organizationID uint) (*models.UserPermissions, error) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
		}
	}()

	var rows []resolvedRow
	err := r.db.WithContext(ctx).
		Table("memberships AS m").
		Select(`m.id AS membership_id,
			r.id AS role_id,
			r.name AS role_name,
			COALESCE(r.description, '') AS role_description,
			r.organization_id AS role_organization_id,
			r.is_system_role AS is_system_role,
			p.id AS permission_id,
			p.slug AS slug,
			p.resource AS resource,
			p.action AS action,
			COALESCE(p.description, '') AS permission_description,
			p.is_system_permission AS is_system_permission`).
		Joins("JOIN roles AS r ON r.id = m.role_id").
		Joins("LEFT JOIN role_permissions AS rp ON rp.role_id = r.id").
		Joins("LEFT JOIN permissions AS p ON p.id = rp.permission_id").
		Where("m.user_id = ? AND m.organization_id = ?", userID, organizationID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	first := rows[0]
	up := &models.UserPermissions{
		UserID:         userID,
		OrganizationID: organizationID,
		MembershipID:   first.MembershipID,
		Role: models.RoleSummary{
			ID:             first.RoleID,
			Name:           first.RoleName,
			Description:    first.RoleDescription,
			OrganizationID: first.RoleOrganizationID,
			IsSystemRole:   first.IsSystemRole,
		},
		Permissions: make([]models.PermissionInfo, 0, len(rows)),
	}
	for _, row := range rows {
		// 角色无映射时 LEFT JOIN 产生一行空权限
		if row.PermissionID == nil || row.Slug == nil {
			continue
		}
		info := models.PermissionInfo{
			ID:   *row.PermissionID,
			Slug: *row.Slug,
		}
		if row.Resource != nil {
			info.Resource = *row.Resource
		}
		if row.Action != nil {
			info.Action = *row.Action
		}
		if row.PermissionDescription != nil {
			info.Description = *row.PermissionDescription
		}
		if row.IsSystemPermission != nil {
			info.IsSystemPermission = *row.IsSystemPermission
		}
		up.Permissions = append(up.Permissions, info)
	}
	sort.Slice(up.Permissions, func(i, j int) bool {
		return up.Permissions[i].Slug < up.Permissions[j].Slug
	})
	return up, nil
}

// countGranted 统计用户持有的 slugs 数量，只查询目标权限
func (r *PermissionResolver) countGranted(ctx context.Context, userID, organizationID uint, slugs []string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("memberships AS m").
		Joins("JOIN role_permissions AS rp ON rp.role_id = m.role_id").
		Joins("JOIN permissions AS p ON p.id = rp.permission_id").
		Where("m.user_id = ? AND m.organization_id = ?", userID, organizationID).
		Where("p.slug IN ?", slugs).
		Count(&count).Error
	return count, err
}

// granted 按 slug 集合判定；启用缓存时基于完整权限集，否则走过滤查询
func (r *PermissionResolver) granted(ctx context.Context, userID, organizationID uint, slugs []string, all bool) (bool, error) {
	slugs = uniqueSlugs(slugs)
	if len(slugs) == 0 {
		return false, nil
	}

	if r.cache != nil {
		up, err := r.resolve(ctx, userID, organizationID)
		if err != nil {
			return false, err
		}
		if all {
			return up.HasAll(slugs...), nil
		}
		return up.HasAny(slugs...), nil
	}

	count, err := r.countGranted(ctx, userID, organizationID, slugs)
	if err != nil {
		return false, err
	}
	if all {
		return count == int64(len(slugs)), nil
	}
	return count > 0, nil
}

// HasPermission 用户是否持有 slug
func (r *PermissionResolver) HasPermission(ctx context.Context, userID, organizationID uint, slug string) bool {
	return r.decide(ctx, opHasPermission, userID, organizationID, []string{slug}, false)
}

// HasAnyPermission 是否持有任一 slug，空列表为 false
func (r *PermissionResolver) HasAnyPermission(ctx context.Context, userID, organizationID uint, slugs []string) bool {
	return r.decide(ctx, opHasAnyPermission, userID, organizationID, slugs, false)
}

// HasAllPermissions 是否持有全部 slug，空列表为 false
func (r *PermissionResolver) HasAllPermissions(ctx context.Context, userID, organizationID uint, slugs []string) bool {
	return r.decide(ctx, opHasAllPermissions, userID, organizationID, slugs, true)
}

func (r *PermissionResolver) decide(ctx context.Context, op string, userID, organizationID uint, slugs []string, all bool) bool {
	ok, err := r.granted(ctx, userID, organizationID, slugs, all)
	if err != nil {
		r.failClosed(op, userID, organizationID, err)
		return false
	}
	r.metrics.Decision(op, ok)
	return ok
}

// CanCreate 等价于 HasPermission("create:{resource}")
func (r *PermissionResolver) CanCreate(ctx context.Context, userID, organizationID uint, resource string) bool {
	return r.HasPermission(ctx, userID, organizationID, models.BuildSlug(models.ActionCreate, resource))
}

// CanRead 等价于 HasPermission("read:{resource}")
func (r *PermissionResolver) CanRead(ctx context.Context, userID, organizationID uint, resource string) bool {
	return r.HasPermission(ctx, userID, organizationID, models.BuildSlug(models.ActionRead, resource))
}

// CanUpdate 等价于 HasPermission("update:{resource}")
func (r *PermissionResolver) CanUpdate(ctx context.Context, userID, organizationID uint, resource string) bool {
	return r.HasPermission(ctx, userID, organizationID, models.BuildSlug(models.ActionUpdate, resource))
}

// CanDelete 等价于 HasPermission("delete:{resource}")
func (r *PermissionResolver) CanDelete(ctx context.Context, userID, organizationID uint, resource string) bool {
	return r.HasPermission(ctx, userID, organizationID, models.BuildSlug(models.ActionDelete, resource))
}

// StagePolicy 基于一次完整解析构建阶段策略；无成员关系时所有阶段不可访问
func (r *PermissionResolver) StagePolicy(ctx context.Context, userID, organizationID uint) *StagePolicy {
	return NewStagePolicy(r.GetUserPermissions(ctx, userID, organizationID))
}

func (r *PermissionResolver) failClosed(op string, userID, organizationID uint, err error) {
	r.metrics.Failure(op)
	r.log.WithError(err).WithFields(logrus.Fields{
		"operation":       op,
		"user_id":         userID,
		"organization_id": organizationID,
	}).Error("Permission lookup failed, access denied")
}

// ========== 缓存失效 ==========

// CacheEnabled 是否启用了缓存
func (r *PermissionResolver) CacheEnabled() bool {
	return r.cache != nil
}

// InvalidateUser 成员关系写入后调用
func (r *PermissionResolver) InvalidateUser(ctx context.Context, userID, organizationID uint) {
	if r.cache == nil {
		return
	}
	r.cache.invalidate(ctx, triggerMembership, MemberKey{UserID: userID, OrganizationID: organizationID})
}

// InvalidateRoles 角色权限映射写入后调用，失效所有持有这些角色的成员
func (r *PermissionResolver) InvalidateRoles(ctx context.Context, roleIDs ...uint) {
	if r.cache == nil || len(roleIDs) == 0 {
		return
	}
	keys, err := r.memberKeys(r.db.WithContext(ctx).Where("role_id IN ?", roleIDs))
	if err != nil {
		r.log.WithError(err).WithField("role_ids", roleIDs).Error("Load role holders for cache invalidation failed")
		return
	}
	r.cache.invalidate(ctx, triggerRolePermission, keys...)
}

// InvalidateMembers 直接失效一组成员，用于删除组织前收集的键
func (r *PermissionResolver) InvalidateMembers(ctx context.Context, keys []MemberKey) {
	if r.cache == nil {
		return
	}
	r.cache.invalidate(ctx, triggerOrganization, keys...)
}

// OrganizationMemberKeys 组织内所有成员的缓存键
func (r *PermissionResolver) OrganizationMemberKeys(ctx context.Context, organizationID uint) ([]MemberKey, error) {
	if r.cache == nil {
		return nil, nil
	}
	return r.memberKeys(r.db.WithContext(ctx).Where("organization_id = ?", organizationID))
}

func (r *PermissionResolver) memberKeys(scope *gorm.DB) ([]MemberKey, error) {
	var memberships []models.Membership
	if err := scope.Model(&models.Membership{}).Select("user_id", "organization_id").Find(&memberships).Error; err != nil {
		return nil, err
	}
	keys := make([]MemberKey, len(memberships))
	for i, m := range memberships {
		keys[i] = MemberKey{UserID: m.UserID, OrganizationID: m.OrganizationID}
	}
	return keys, nil
}

func uniqueSlugs(slugs []string) []string {
	seen := make(map[string]struct{}, len(slugs))
	out := make([]string, 0, len(slugs))
	for _, s := range slugs {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

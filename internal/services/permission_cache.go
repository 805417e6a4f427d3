package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crmhub/internal/models"
	"crmhub/pkg/cache"
	"crmhub/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// MemberKey 缓存键对应的 (用户, 组织)
type MemberKey struct {
	UserID         uint
	OrganizationID uint
}

func (k MemberKey) cacheKey() string {
	return fmt.Sprintf("perm:%d:%d", k.UserID, k.OrganizationID)
}

// permissionCache 以 JSON 形式缓存 UserPermissions，缓存故障只降级不报错
type permissionCache struct {
	store   cache.Store
	log     *logrus.Logger
	metrics *metrics.Metrics
}

func (c *permissionCache) get(ctx context.Context, key MemberKey) (*models.UserPermissions, bool) {
	raw, err := c.store.Get(ctx, key.cacheKey())
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.log.WithError(err).WithField("key", key.cacheKey()).Warn("Permission cache read failed")
		}
		c.metrics.CacheMiss()
		return nil, false
	}

	var up models.UserPermissions
	if err := json.Unmarshal(raw, &up); err != nil {
		c.log.WithError(err).WithField("key", key.cacheKey()).Warn("Permission cache entry corrupted")
		_ = c.store.Delete(ctx, key.cacheKey())
		c.metrics.CacheMiss()
		return nil, false
	}
	c.metrics.CacheHit()
	return &up, true
}

func (c *permissionCache) set(ctx context.Context, up *models.UserPermissions) {
	raw, err := json.Marshal(up)
	if err != nil {
		return
	}
	key := MemberKey{UserID: up.UserID, OrganizationID: up.OrganizationID}
	if err := c.store.Set(ctx, key.cacheKey(), raw); err != nil {
		c.log.WithError(err).WithField("key", key.cacheKey()).Warn("Permission cache write failed")
	}
}

func (c *permissionCache) invalidate(ctx context.Context, trigger string, keys ...MemberKey) {
	if len(keys) == 0 {
		return
	}
	raw := make([]string, len(keys))
	for i, k := range keys {
		raw[i] = k.cacheKey()
	}
	if err := c.store.Delete(ctx, raw...); err != nil {
		c.log.WithError(err).WithField("trigger", trigger).Error("Permission cache invalidation failed")
		return
	}
	c.metrics.Invalidated(trigger, len(keys))
}

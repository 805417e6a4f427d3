// Package cache 提供按键存取字节数据的带 TTL 存储，
// 用于缓存 (用户, 组织) 的已解析权限集合。
package cache

import (
	"context"
	"errors"
)

// ErrCacheMiss 键不存在或已过期
var ErrCacheMiss = errors.New("cache miss")

// Store 缓存存储接口
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// NoopStore 不缓存任何内容，Get 永远未命中
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }
func (NoopStore) Set(context.Context, string, []byte) error { return nil }
func (NoopStore) Delete(context.Context, ...string) error { return nil }
func (NoopStore) Close() error { return nil }

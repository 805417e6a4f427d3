package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore 进程内 LRU 缓存，条目到期自动淘汰
type MemoryStore struct {
	lru *lru.LRU[string, []byte]
}

// NewMemoryStore 创建内存缓存
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size < 1 {
		size = 1
	}
	return &MemoryStore{
		lru: lru.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.lru.Add(key, value)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.lru.Remove(k)
	}
	return nil
}

// Len 当前条目数
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}

func (s *MemoryStore) Close() error {
	s.lru.Purge()
	return nil
}

package inflight

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
)

// Guard 保证同一用户同一时刻只有一个分析在进行
type Guard interface {
	// Acquire 成功占用返回 true，已被占用返回 false
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisGuard 基于 SETNX 的跨进程占用标记，TTL 防止进程崩溃后永久占用
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, prefix: "inflight:", ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire in-flight flag: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, g.prefix+key).Err()
}

// MemoryGuard 单进程部署时使用
type MemoryGuard struct {
	items *gocache.Cache
	ttl   time.Duration
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{
		items: gocache.New(ttl, time.Minute),
		ttl:   ttl,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (bool, error) {
	// Add 在键已存在且未过期时返回错误，且本身是原子的
	if err := g.items.Add(key, struct{}{}, g.ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.items.Delete(key)
	return nil
}

// UserKey 用户维度的占用键
func UserKey(userID int64) string {
	return fmt.Sprintf("analysis:%d", userID)
}

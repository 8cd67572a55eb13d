package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"

	"github.com/qs3c/coach_go_server/internal/recorder"
)

var ErrRecordingNotFound = errors.New("recording not found")

// RecordingInfo 列表展示用，不含音频数据
type RecordingInfo struct {
	ID        int64     `json:"id"`
	Duration  int       `json:"duration"`
	MimeType  string    `json:"mime_type"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func infoOf(rec *recorder.Recording) RecordingInfo {
	return RecordingInfo{
		ID:        rec.ID,
		Duration:  rec.Duration,
		MimeType:  rec.MimeType,
		Size:      rec.Size(),
		CreatedAt: rec.CreatedAt,
	}
}

// RecordingStore 录音只保存在临时存储中，过期自动清除，不落关系库
type RecordingStore interface {
	Save(ctx context.Context, userID int64, rec *recorder.Recording) error
	Get(ctx context.Context, userID, id int64) (*recorder.Recording, error)
	List(ctx context.Context, userID int64) ([]RecordingInfo, error)
	Delete(ctx context.Context, userID, id int64) error
}

// MemoryRecordingStore 进程内实现
type MemoryRecordingStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewMemoryRecordingStore(ttl time.Duration) *MemoryRecordingStore {
	return &MemoryRecordingStore{
		cache: gocache.New(ttl, time.Minute),
		ttl:   ttl,
	}
}

func memoryKey(userID, id int64) string {
	return fmt.Sprintf("%d:%d", userID, id)
}

func (s *MemoryRecordingStore) Save(_ context.Context, userID int64, rec *recorder.Recording) error {
	s.cache.Set(memoryKey(userID, rec.ID), rec, s.ttl)
	return nil
}

func (s *MemoryRecordingStore) Get(_ context.Context, userID, id int64) (*recorder.Recording, error) {
	v, ok := s.cache.Get(memoryKey(userID, id))
	if !ok {
		return nil, ErrRecordingNotFound
	}
	return v.(*recorder.Recording), nil
}

func (s *MemoryRecordingStore) List(_ context.Context, userID int64) ([]RecordingInfo, error) {
	prefix := strconv.FormatInt(userID, 10) + ":"
	infos := make([]RecordingInfo, 0)
	for k, item := range s.cache.Items() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		infos = append(infos, infoOf(item.Object.(*recorder.Recording)))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID > infos[j].ID })
	return infos, nil
}

func (s *MemoryRecordingStore) Delete(_ context.Context, userID, id int64) error {
	key := memoryKey(userID, id)
	if _, ok := s.cache.Get(key); !ok {
		return ErrRecordingNotFound
	}
	s.cache.Delete(key)
	return nil
}

// RedisRecordingStore 多实例部署时使用：音频以 JSON 存储并设置 TTL，
// 每个用户一个有序集合作为索引
type RedisRecordingStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRecordingStore(client *redis.Client, ttl time.Duration) *RedisRecordingStore {
	return &RedisRecordingStore{client: client, ttl: ttl}
}

func redisRecordingKey(userID, id int64) string {
	return fmt.Sprintf("recording:%d:%d", userID, id)
}

func redisIndexKey(userID int64) string {
	return fmt.Sprintf("recordings:%d", userID)
}

func (s *RedisRecordingStore) Save(ctx context.Context, userID int64, rec *recorder.Recording) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}

	idx := redisIndexKey(userID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisRecordingKey(userID, rec.ID), data, s.ttl)
		pipe.ZAdd(ctx, idx, &redis.Z{Score: float64(rec.ID), Member: rec.ID})
		pipe.Expire(ctx, idx, s.ttl)
		return nil
	})
	return err
}

func (s *RedisRecordingStore) Get(ctx context.Context, userID, id int64) (*recorder.Recording, error) {
	data, err := s.client.Get(ctx, redisRecordingKey(userID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordingNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec recorder.Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recording: %w", err)
	}
	return &rec, nil
}

func (s *RedisRecordingStore) List(ctx context.Context, userID int64) ([]RecordingInfo, error) {
	idx := redisIndexKey(userID)
	members, err := s.client.ZRevRange(ctx, idx, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	infos := make([]RecordingInfo, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		rec, err := s.Get(ctx, userID, id)
		if errors.Is(err, ErrRecordingNotFound) {
			// 音频已过期，顺手清理索引
			s.client.ZRem(ctx, idx, m)
			continue
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, infoOf(rec))
	}
	return infos, nil
}

func (s *RedisRecordingStore) Delete(ctx context.Context, userID, id int64) error {
	n, err := s.client.Del(ctx, redisRecordingKey(userID, id)).Result()
	if err != nil {
		return err
	}
	s.client.ZRem(ctx, redisIndexKey(userID), id)
	if n == 0 {
		return ErrRecordingNotFound
	}
	return nil
}

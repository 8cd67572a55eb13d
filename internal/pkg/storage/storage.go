package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/qs3c/coach_go_server/config"
)

// ObjectStore 对象存储抽象，目前只用于用户头像
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL 将 Put 返回的地址还原为对象键
	KeyFromURL(url string) string
}

// New 按 storage.backend 选择实现
func New(cfg *config.Config) (ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "minio":
		return NewMinioStore(&cfg.Minio)
	case "", "oss":
		return NewOSSStore(&cfg.OSS)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

// AvatarKey 头像对象键：avatars/<user>/<unix><ext>
func AvatarKey(userID int64, ext string, now time.Time) string {
	return fmt.Sprintf("avatars/%d/%d%s", userID, now.Unix(), strings.ToLower(ext))
}

// ContentTypeFor 根据扩展名获取 Content-Type
func ContentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// keyAfterPrefix 去掉地址前缀，无法识别时退回到文件名
func keyAfterPrefix(url, prefix string) string {
	if prefix != "" && strings.HasPrefix(url, prefix) {
		return strings.TrimPrefix(url, prefix)
	}
	return path.Base(url)
}

// MemoryStore 进程内实现，本地开发与测试使用
type MemoryStore struct {
	mu      sync.RWMutex
	base    string
	objects map[string][]byte
}

func NewMemoryStore(base string) *MemoryStore {
	return &MemoryStore{base: strings.TrimSuffix(base, "/") + "/", objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return s.base + key, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) KeyFromURL(url string) string {
	return keyAfterPrefix(url, s.base)
}

// Has 测试辅助
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/pkg/storage"
	"github.com/qs3c/coach_go_server/internal/repository"
)

const maxAvatarBytes = 5 * 1024 * 1024

var (
	ErrStorageDisabled = errors.New("对象存储未配置")
	ErrInvalidAvatar   = errors.New("头像格式不支持或文件过大")
)

var avatarExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

type UserService struct {
	userRepo *repository.UserRepository
	store    storage.ObjectStore
	quota    *QuotaService
	logger   *zap.Logger
	now      func() time.Time
}

func NewUserService(userRepo *repository.UserRepository, store storage.ObjectStore, quota *QuotaService, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		userRepo: userRepo,
		store:    store,
		quota:    quota,
		logger:   logger,
		now:      time.Now,
	}
}

// GetProfile 获取用户详情，附带套餐与配额
func (s *UserService) GetProfile(userID int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	info := buildUserInfo(user)
	if s.quota != nil {
		quota, err := s.quota.GetQuotaInfo(userID)
		if err != nil {
			return nil, err
		}
		info.Plan = quota.Plan
		info.QuotaInfo = quota
	}
	return info, nil
}

// UpdateProfile 更新用户信息
func (s *UserService) UpdateProfile(userID int64, req *dto.UpdateProfileRequest) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if req.Username != nil && *req.Username != user.Username {
		exists, err := s.userRepo.ExistsByUsername(*req.Username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrUsernameExists
		}
		user.Username = *req.Username
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.PartnerName != nil {
		user.PartnerName = strings.TrimSpace(*req.PartnerName)
	}

	if err := s.userRepo.Update(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameExists
		}
		return nil, err
	}

	return s.GetProfile(userID)
}

// UploadAvatar 上传头像并删除旧文件
func (s *UserService) UploadAvatar(ctx context.Context, userID int64, file io.Reader, filename string) (string, error) {
	if s.store == nil {
		return "", ErrStorageDisabled
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	if !avatarExts[ext] {
		return "", ErrInvalidAvatar
	}

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) == 0 || len(data) > maxAvatarBytes {
		return "", ErrInvalidAvatar
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	key := storage.AvatarKey(userID, ext, s.now())
	avatarURL, err := s.store.Put(ctx, key, data, storage.ContentTypeFor(ext))
	if err != nil {
		return "", err
	}

	if err := s.userRepo.UpdateFields(userID, map[string]interface{}{"avatar_url": avatarURL}); err != nil {
		return "", err
	}

	// 只清理本存储中的旧头像，GitHub 头像等外链跳过
	if old := user.AvatarURL; old != "" && old != avatarURL {
		if oldKey := s.store.KeyFromURL(old); strings.HasPrefix(oldKey, "avatars/") {
			if err := s.store.Delete(ctx, oldKey); err != nil {
				s.logger.Warn("delete old avatar failed", zap.String("key", oldKey), zap.Error(err))
			}
		}
	}

	return avatarURL, nil
}

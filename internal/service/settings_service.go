package service

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/model"
	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/repository"
)

// SettingsService 用户级设置，未保存过时转写默认开启
type SettingsService struct {
	repo *repository.SettingsRepository
}

func NewSettingsService(repo *repository.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// Load 读取设置，不存在时返回默认值
func (s *SettingsService) Load(userID int64) (*model.UserSettings, error) {
	settings, err := s.repo.Get(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.UserSettings{UserID: userID, TranscriptionEnabled: true}, nil
	}
	return settings, err
}

// Save 整体保存设置
func (s *SettingsService) Save(settings *model.UserSettings) error {
	return s.repo.Save(settings)
}

// DisableTranscription 转写失败后关闭开关，需用户手动重新开启
func (s *SettingsService) DisableTranscription(userID int64) error {
	settings, err := s.Load(userID)
	if err != nil {
		return err
	}
	if !settings.TranscriptionEnabled {
		return nil
	}
	settings.TranscriptionEnabled = false
	return s.Save(settings)
}

// Get 返回给前端的设置，密钥做掩码
func (s *SettingsService) Get(userID int64) (*dto.SettingsResponse, error) {
	settings, err := s.Load(userID)
	if err != nil {
		return nil, err
	}
	return buildSettingsResponse(settings), nil
}

// Update 只修改请求中出现的字段
func (s *SettingsService) Update(userID int64, req *dto.UpdateSettingsRequest) (*dto.SettingsResponse, error) {
	settings, err := s.Load(userID)
	if err != nil {
		return nil, err
	}
	if req.TranscriptionEnabled != nil {
		settings.TranscriptionEnabled = *req.TranscriptionEnabled
	}
	if req.AnalysisAPIKey != nil {
		settings.AnalysisAPIKey = strings.TrimSpace(*req.AnalysisAPIKey)
	}
	if err := s.Save(settings); err != nil {
		return nil, err
	}
	return buildSettingsResponse(settings), nil
}

func buildSettingsResponse(settings *model.UserSettings) *dto.SettingsResponse {
	return &dto.SettingsResponse{
		TranscriptionEnabled: settings.TranscriptionEnabled,
		HasAPIKey:            settings.AnalysisAPIKey != "",
		APIKeyMasked:         MaskKey(settings.AnalysisAPIKey),
	}
}

// MaskKey 只保留末 4 位
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}

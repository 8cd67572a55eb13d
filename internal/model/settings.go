package model

import (
	"time"
)

// UserSettings 用户级设置（分析密钥、转写开关）
type UserSettings struct {
	UserID               int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	AnalysisAPIKey       string    `gorm:"size:255" json:"-"`
	TranscriptionEnabled bool      `gorm:"not null" json:"transcription_enabled"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (UserSettings) TableName() string {
	return "user_settings"
}

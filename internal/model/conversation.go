package model

import (
	"time"
)

// Conversation 一次对话分析的结果，不包含原始音频
type Conversation struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	UserID         int64     `gorm:"not null;index" json:"user_id"`
	RecordingID    int64     `gorm:"index" json:"recording_id"`
	Title          string    `gorm:"size:200" json:"title"`
	Duration       int       `json:"duration"`
	Transcript     string    `gorm:"type:text" json:"transcript"`
	Segments       string    `gorm:"type:text" json:"-"` // JSON 编码的发言片段
	AnalysisText   string    `gorm:"type:text" json:"analysis_text"`
	Model          string    `gorm:"size:100" json:"model"`
	AnalysisFailed bool      `gorm:"default:false" json:"analysis_failed"`
	FailureKind    string    `gorm:"size:30" json:"failure_kind,omitempty"`
	UsedFallback   bool      `gorm:"default:false" json:"used_fallback"`
	FallbackReason string    `gorm:"size:30" json:"fallback_reason,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

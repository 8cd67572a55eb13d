package dto

import (
	"github.com/qs3c/coach_go_server/internal/insight"
	"github.com/qs3c/coach_go_server/internal/transcript"
)

// AnalysisOutcome 分析结果；失败时 Text 为致歉文案，Model 为 "error"
type AnalysisOutcome struct {
	Text        string `json:"text"`
	Model       string `json:"model"`
	Failed      bool   `json:"failed"`
	FailureKind string `json:"failure_kind,omitempty"`
}

// ConversationResult 一次对话分析的完整结果
type ConversationResult struct {
	ID             int64                     `json:"id"`
	RecordingID    int64                     `json:"recording_id"`
	Title          string                    `json:"title"`
	Duration       int                       `json:"duration"`
	DurationText   string                    `json:"duration_text"`
	Transcript     string                    `json:"transcript"`
	Segments       []transcript.Segment      `json:"segments"`
	Analysis       AnalysisOutcome           `json:"analysis"`
	UsedFallback   bool                      `json:"used_fallback"`
	FallbackReason string                    `json:"fallback_reason,omitempty"`
	Metrics        insight.Metrics           `json:"metrics"`
	Synthetic      *insight.SyntheticMetrics `json:"synthetic_metrics,omitempty"`
	Insights       []insight.Card            `json:"insights"`
	CreatedAt      string                    `json:"created_at"`
}

// ConversationListItem 对话列表项
type ConversationListItem struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Duration       int    `json:"duration"`
	DurationText   string `json:"duration_text"`
	Model          string `json:"model"`
	AnalysisFailed bool   `json:"analysis_failed"`
	UsedFallback   bool   `json:"used_fallback"`
	CreatedAt      string `json:"created_at"`
}

// SubmitJobResponse 异步分析任务提交结果
type SubmitJobResponse struct {
	JobID int64 `json:"job_id"`
}

// JobInfo 异步任务状态
type JobInfo struct {
	JobID          int64  `json:"job_id"`
	Status         string `json:"status"`
	CurrentStep    string `json:"current_step,omitempty"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	CreatedAt      string `json:"created_at"`
}


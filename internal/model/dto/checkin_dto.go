package dto

// CreateCheckInRequest 每日打卡请求，字段校验在 service 层完成
type CreateCheckInRequest struct {
	Mood           int     `json:"mood"`
	Highlight      string  `json:"highlight"`
	Challenge      string  `json:"challenge"`
	Gratitude      string  `json:"gratitude"`
	NeedsSupport   bool    `json:"needs_support"`
	SupportDetails *string `json:"support_details,omitempty"`
}

// CheckInSummary 打卡进度汇总
type CheckInSummary struct {
	Total          int64   `json:"total"`
	AverageMood    float64 `json:"average_mood"`
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`
	SupportCount   int64   `json:"support_count"`
	CheckedInToday bool    `json:"checked_in_today"`
}

package dto

// PermissionRequest 上报浏览器麦克风权限
type PermissionRequest struct {
	Permission string `json:"permission" binding:"required"`
}

// PermissionResponse 当前麦克风权限
type PermissionResponse struct {
	Permission string `json:"permission"`
}

// RecorderStatus 录音器状态
type RecorderStatus struct {
	State       string `json:"state"`
	Permission  string `json:"permission"`
	Elapsed     int    `json:"elapsed"`
	ElapsedText string `json:"elapsed_text"`
}

// RecordingInfo 录音元信息，不含音频数据
type RecordingInfo struct {
	ID           int64  `json:"id"`
	Duration     int    `json:"duration"`
	DurationText string `json:"duration_text"`
	MimeType     string `json:"mime_type"`
	Size         int    `json:"size"`
	CreatedAt    string `json:"created_at"`
}

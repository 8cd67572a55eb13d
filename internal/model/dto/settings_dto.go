package dto

// SettingsResponse 用户设置，密钥只返回掩码
type SettingsResponse struct {
	TranscriptionEnabled bool   `json:"transcription_enabled"`
	HasAPIKey            bool   `json:"has_api_key"`
	APIKeyMasked         string `json:"api_key_masked,omitempty"`
}

// UpdateSettingsRequest 更新设置，空字符串密钥表示清除
type UpdateSettingsRequest struct {
	TranscriptionEnabled *bool   `json:"transcription_enabled,omitempty"`
	AnalysisAPIKey       *string `json:"analysis_api_key,omitempty" binding:"omitempty,max=255"`
}

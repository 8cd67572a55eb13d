package transcript

import (
	"encoding/json"
	"strings"
)

// Format 把 [{transcription}] 形式的 JSON 数组按顺序以空格拼接，其他输入原样返回
func Format(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") {
		return raw
	}

	var parts []struct {
		Transcription string `json:"transcription"`
	}
	if err := json.Unmarshal([]byte(trimmed), &parts); err != nil {
		return raw
	}

	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.Transcription
	}
	return JoinTranscriptions(texts)
}

// JoinTranscriptions 以单个空格拼接分段转写
func JoinTranscriptions(parts []string) string {
	return strings.Join(parts, " ")
}

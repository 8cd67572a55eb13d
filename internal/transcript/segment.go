package transcript

import (
	"regexp"
	"strings"
)

// Segment 一段发言，Speaker 为空表示未识别说话人
type Segment struct {
	Speaker string `json:"speaker,omitempty"`
	Content string `json:"content"`
}

var speakerLine = regexp.MustCompile(`^([^:]+):\s*(.*)$`)

// GetSpeakerSegments 按行拆分 "Speaker: text" 格式的文本，跳过空行
func GetSpeakerSegments(text string) []Segment {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	segments := make([]Segment, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := speakerLine.FindStringSubmatch(line)
		if m == nil {
			segments = append(segments, Segment{Content: line})
			continue
		}
		segments = append(segments, Segment{
			Speaker: strings.TrimSpace(m[1]),
			Content: strings.TrimSpace(m[2]),
		})
	}

	return segments
}

// Join 把片段还原成逐行文本，GetSpeakerSegments(Join(s)) 与 s 相同
func Join(segments []Segment) string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Speaker == "" {
			lines = append(lines, s.Content)
			continue
		}
		lines = append(lines, s.Speaker+": "+s.Content)
	}
	return strings.Join(lines, "\n")
}

// Speakers 按首次出现顺序返回说话人
func Speakers(segments []Segment) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range segments {
		if s.Speaker == "" {
			continue
		}
		if _, ok := seen[s.Speaker]; ok {
			continue
		}
		seen[s.Speaker] = struct{}{}
		out = append(out, s.Speaker)
	}
	return out
}

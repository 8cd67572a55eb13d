package insight

import (
	"math"
	"strings"

	"github.com/qs3c/coach_go_server/internal/transcript"
)

// SpeakerStats 单个说话人的发言统计
type SpeakerStats struct {
	Speaker   string `json:"speaker"`
	Turns     int    `json:"turns"`
	Words     int    `json:"words"`
	Questions int    `json:"questions"`
	TalkShare int    `json:"talk_share"` // 字数占比，百分数
}

// Metrics 由转写文本计算出的确定性指标
type Metrics struct {
	TotalTurns      int            `json:"total_turns"`
	TotalWords      int            `json:"total_words"`
	AvgWordsPerTurn float64        `json:"avg_words_per_turn"`
	Questions       int            `json:"questions"`
	BalanceScore    int            `json:"balance_score"` // 100 表示发言完全均衡
	Speakers        []SpeakerStats `json:"speakers"`
}

// Derive 根据发言片段计算指标，结果只依赖输入
func Derive(segments []transcript.Segment) Metrics {
	var m Metrics
	index := make(map[string]int)

	for _, seg := range segments {
		words := len(strings.Fields(seg.Content))
		questions := strings.Count(seg.Content, "?")

		m.TotalTurns++
		m.TotalWords += words
		m.Questions += questions

		if seg.Speaker == "" {
			continue
		}
		i, ok := index[seg.Speaker]
		if !ok {
			i = len(m.Speakers)
			index[seg.Speaker] = i
			m.Speakers = append(m.Speakers, SpeakerStats{Speaker: seg.Speaker})
		}
		m.Speakers[i].Turns++
		m.Speakers[i].Words += words
		m.Speakers[i].Questions += questions
	}

	if m.TotalTurns > 0 {
		m.AvgWordsPerTurn = math.Round(float64(m.TotalWords)/float64(m.TotalTurns)*10) / 10
	}

	attributed := 0
	for _, s := range m.Speakers {
		attributed += s.Words
	}
	if attributed == 0 {
		return m
	}

	minShare, maxShare := 100, 0
	for i := range m.Speakers {
		share := int(math.Round(float64(m.Speakers[i].Words) * 100 / float64(attributed)))
		m.Speakers[i].TalkShare = share
		if share < minShare {
			minShare = share
		}
		if share > maxShare {
			maxShare = share
		}
	}
	if len(m.Speakers) > 1 {
		m.BalanceScore = 100 - (maxShare - minShare)
	}

	return m
}

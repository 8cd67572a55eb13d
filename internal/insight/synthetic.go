package insight

import "math/rand"

// SyntheticMetrics 演示模式下的随机评分，不代表真实分析结果
type SyntheticMetrics struct {
	Synthetic          bool `json:"synthetic"`
	Empathy            int  `json:"empathy"`
	ActiveListening    int  `json:"active_listening"`
	Clarity            int  `json:"clarity"`
	ConflictResolution int  `json:"conflict_resolution"`
	PositiveTone       int  `json:"positive_tone"`
}

const (
	syntheticMin = 60
	syntheticMax = 95
)

// Generator 生成演示评分，随机源可注入以便测试
type Generator struct {
	rng *rand.Rand
}

func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate 每项评分落在 [60, 95]
func (g *Generator) Generate() *SyntheticMetrics {
	return &SyntheticMetrics{
		Synthetic:          true,
		Empathy:            g.score(),
		ActiveListening:    g.score(),
		Clarity:            g.score(),
		ConflictResolution: g.score(),
		PositiveTone:       g.score(),
	}
}

func (g *Generator) score() int {
	return syntheticMin + g.rng.Intn(syntheticMax-syntheticMin+1)
}

package transcript

import "strings"

// FallbackTranscript 转写不可用时使用的示例对话
const FallbackTranscript = `Alex: I feel like we never get to talk anymore. You're always on your phone when I get home.
Jordan: That's not fair. I'm answering work messages, and I told you this month would be busy.
Alex: I know, but it still hurts. I just want twenty minutes where it's only us.
Jordan: I hear you. I didn't realize it was making you feel that lonely.
Alex: Thank you. I don't want to fight about it, I just miss you.
Jordan: What if we put our phones away after dinner and take a walk together?
Alex: I'd really like that. Can we start tonight?
Jordan: Tonight works. And tell me sooner next time something like this is building up.`

// 回退原因
const (
	ReasonDisabled      = "disabled"
	ReasonUpstreamError = "upstream_error"
	ReasonEmpty         = "empty"
)

// Decision 回退策略的判定结果
type Decision struct {
	Text                 string
	UsedFallback         bool
	DisableTranscription bool
	Reason               string
}

// Decide 决定使用真实转写还是示例对话；任何上游失败都会要求关闭转写开关
func Decide(enabled bool, upstreamErr error, result string) Decision {
	switch {
	case !enabled:
		return Decision{Text: FallbackTranscript, UsedFallback: true, Reason: ReasonDisabled}
	case upstreamErr != nil:
		return Decision{Text: FallbackTranscript, UsedFallback: true, DisableTranscription: true, Reason: ReasonUpstreamError}
	case strings.TrimSpace(result) == "":
		return Decision{Text: FallbackTranscript, UsedFallback: true, DisableTranscription: true, Reason: ReasonEmpty}
	default:
		return Decision{Text: result}
	}
}

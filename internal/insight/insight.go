package insight

// 卡片类型
const (
	TypeStrength    = "strength"
	TypeImprovement = "improvement"
	TypeExercise    = "exercise"
)

// Card 展示给用户的建议卡片
type Card struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var defaultCards = []Card{
	{
		Type:        TypeStrength,
		Title:       "Validating feelings",
		Description: "Acknowledging what your partner feels before responding helps them feel heard.",
	},
	{
		Type:        TypeStrength,
		Title:       "Proposing solutions",
		Description: "Offering a concrete next step moved the conversation from blame to teamwork.",
	},
	{
		Type:        TypeImprovement,
		Title:       "Avoid absolute language",
		Description: "Words like \"never\" and \"always\" tend to put the other person on the defensive.",
	},
	{
		Type:        TypeImprovement,
		Title:       "Raise concerns earlier",
		Description: "Sharing small frustrations sooner keeps them from building into bigger arguments.",
	},
	{
		Type:        TypeExercise,
		Title:       "Daily 20-minute check-in",
		Description: "Set aside phone-free time each day to talk about how you are both doing.",
	},
}

// DefaultCards 返回固定的建议卡片
func DefaultCards() []Card {
	return append([]Card(nil), defaultCards...)
}

package subscription

// 套餐 ID
const (
	PlanFree    = "free"
	PlanPremium = "premium"
	PlanCouples = "couples"
)

// 功能名称，与套餐展示文案一致
const (
	FeatureBasicAnalysis       = "Basic conversation analysis"
	FeatureLimitedRecordings   = "3 conversation recordings per day"
	FeatureDailyCheckIns       = "Daily check-ins"
	FeatureStarterExercises    = "Starter exercises"
	FeatureUnlimitedRecordings = "Unlimited conversation recordings"
	FeatureAdvancedAnalysis    = "Advanced AI analysis"
	FeatureExerciseLibrary     = "Full exercise library"
	FeatureProgressTracking    = "Progress tracking"
	FeaturePartnerSharing      = "Partner sharing"
	FeatureCouplesSessions     = "Joint couples sessions"
	FeaturePrioritySupport     = "Priority support"
)

// Unlimited 表示不限次数
const Unlimited = -1

// Plan 套餐定义，编译期固定
type Plan struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PriceMonthly  float64  `json:"price_monthly"`
	PriceYearly   float64  `json:"price_yearly"`
	TrialDays     int      `json:"trial_days"`
	DailyAnalyses int      `json:"daily_analyses"`
	Features      []string `json:"features"`
}

var plans = []Plan{
	{
		ID:            PlanFree,
		Name:          "Free",
		Description:   "Get started with the essentials",
		DailyAnalyses: 3,
		Features: []string{
			FeatureBasicAnalysis,
			FeatureLimitedRecordings,
			FeatureDailyCheckIns,
			FeatureStarterExercises,
		},
	},
	{
		ID:            PlanPremium,
		Name:          "Premium",
		Description:   "Deeper insight for everyday conversations",
		PriceMonthly:  9.99,
		PriceYearly:   99.99,
		DailyAnalyses: Unlimited,
		Features: []string{
			FeatureBasicAnalysis,
			FeatureUnlimitedRecordings,
			FeatureAdvancedAnalysis,
			FeatureDailyCheckIns,
			FeatureExerciseLibrary,
			FeatureProgressTracking,
		},
	},
	{
		ID:            PlanCouples,
		Name:          "Couples",
		Description:   "Everything in Premium for both partners",
		PriceMonthly:  14.99,
		PriceYearly:   149.99,
		TrialDays:     7,
		DailyAnalyses: Unlimited,
		Features: []string{
			FeatureBasicAnalysis,
			FeatureUnlimitedRecordings,
			FeatureAdvancedAnalysis,
			FeatureDailyCheckIns,
			FeatureExerciseLibrary,
			FeatureProgressTracking,
			FeaturePartnerSharing,
			FeatureCouplesSessions,
			FeaturePrioritySupport,
		},
	},
}

// Plans 返回全部套餐的副本
func Plans() []Plan {
	out := make([]Plan, len(plans))
	for i, p := range plans {
		p.Features = append([]string(nil), p.Features...)
		out[i] = p
	}
	return out
}

// Lookup 按 ID 查找套餐
func Lookup(planID string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == planID {
			return p, true
		}
	}
	return Plan{}, false
}

// HasFeatureAccess 判断套餐是否包含某项功能，未知套餐一律返回 false
func HasFeatureAccess(planID, feature string) bool {
	p, ok := Lookup(planID)
	if !ok {
		return false
	}
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}

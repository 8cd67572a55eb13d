package dto

// UpgradeRequest 升级套餐请求
type UpgradeRequest struct {
	PlanID   string `json:"plan_id" binding:"required"`
	Interval string `json:"interval" binding:"required,oneof=monthly yearly"`
}

// SubscriptionInfo 订阅状态
type SubscriptionInfo struct {
	PlanID            string   `json:"plan_id"`
	EffectivePlan     string   `json:"effective_plan"`
	Status            string   `json:"status"`
	Interval          string   `json:"interval,omitempty"`
	CurrentPeriodEnd  string   `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool     `json:"cancel_at_period_end"`
	Features          []string `json:"features"`
}

// AccessResponse 功能权限查询结果
type AccessResponse struct {
	Feature string `json:"feature"`
	Plan    string `json:"plan"`
	Allowed bool   `json:"allowed"`
}

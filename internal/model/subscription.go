package model

import (
	"time"
)

// 订阅状态
const (
	SubscriptionStatusNone     = "none"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// 计费周期
const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

// UserSubscription 每个用户至多一条订阅记录
type UserSubscription struct {
	ID                int64     `gorm:"primaryKey" json:"id"`
	UserID            int64     `gorm:"not null;uniqueIndex" json:"user_id"`
	PlanID            string    `gorm:"size:20;not null" json:"plan_id"`
	Status            string    `gorm:"size:20;not null;index" json:"status"`
	Interval          string    `gorm:"column:billing_interval;size:10" json:"interval"`
	CurrentPeriodEnd  time.Time `gorm:"index" json:"current_period_end"`
	CancelAtPeriodEnd bool      `gorm:"default:false;index" json:"cancel_at_period_end"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (UserSubscription) TableName() string {
	return "user_subscriptions"
}

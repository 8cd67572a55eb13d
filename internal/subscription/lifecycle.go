package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/qs3c/coach_go_server/internal/model"
)

var (
	ErrInvalidPlan          = errors.New("套餐不存在或不可订阅")
	ErrInvalidInterval      = errors.New("计费周期无效")
	ErrNoActiveSubscription = errors.New("当前没有有效订阅")
	ErrAlreadyCanceling     = errors.New("订阅已设置为到期取消")
	ErrNotCanceling         = errors.New("订阅未处于待取消状态")
	ErrSubscriptionEnded    = errors.New("订阅周期已结束，请重新订阅")
)

// PeriodEnd 计算新计费周期的结束时间
func PeriodEnd(now time.Time, interval string) (time.Time, error) {
	switch interval {
	case model.IntervalMonthly:
		return now.AddDate(0, 0, 30), nil
	case model.IntervalYearly:
		return now.AddDate(0, 0, 365), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}
}

// Upgrade 切换到付费套餐并开始新周期
func Upgrade(sub *model.UserSubscription, planID, interval string, now time.Time) error {
	if planID == PlanFree {
		return ErrInvalidPlan
	}
	if _, ok := Lookup(planID); !ok {
		return ErrInvalidPlan
	}
	end, err := PeriodEnd(now, interval)
	if err != nil {
		return err
	}

	sub.PlanID = planID
	sub.Interval = interval
	sub.Status = model.SubscriptionStatusActive
	sub.CurrentPeriodEnd = end
	sub.CancelAtPeriodEnd = false
	return nil
}

// Cancel 设置为周期结束时取消，状态保持不变
func Cancel(sub *model.UserSubscription) error {
	if !isLive(sub) {
		return ErrNoActiveSubscription
	}
	if sub.CancelAtPeriodEnd {
		return ErrAlreadyCanceling
	}
	sub.CancelAtPeriodEnd = true
	return nil
}

// Reactivate 撤销待取消，周期结束时间不变；周期已结束的只能重新订阅
func Reactivate(sub *model.UserSubscription, now time.Time) error {
	if !isLive(sub) || !sub.CancelAtPeriodEnd {
		return ErrNotCanceling
	}
	if !now.Before(sub.CurrentPeriodEnd) {
		return ErrSubscriptionEnded
	}
	sub.CancelAtPeriodEnd = false
	return nil
}

// Expire 周期结束且待取消的订阅转为 canceled，返回是否发生变化
func Expire(sub *model.UserSubscription, now time.Time) bool {
	if !isLive(sub) || !sub.CancelAtPeriodEnd || now.Before(sub.CurrentPeriodEnd) {
		return false
	}
	sub.Status = model.SubscriptionStatusCanceled
	sub.CancelAtPeriodEnd = false
	return true
}

// EffectivePlan 返回当前实际生效的套餐
func EffectivePlan(sub *model.UserSubscription, now time.Time) string {
	if !isLive(sub) {
		return PlanFree
	}
	if sub.CancelAtPeriodEnd && !now.Before(sub.CurrentPeriodEnd) {
		return PlanFree
	}
	if _, ok := Lookup(sub.PlanID); !ok {
		return PlanFree
	}
	return sub.PlanID
}

func isLive(sub *model.UserSubscription) bool {
	if sub == nil {
		return false
	}
	return sub.Status == model.SubscriptionStatusActive || sub.Status == model.SubscriptionStatusTrialing
}

package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/coach_go_server/internal/model"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) GetByUserID(userID int64) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Upsert 每个用户只有一条订阅，已有记录直接保存，新记录按 user_id 覆盖
func (r *SubscriptionRepository) Upsert(sub *model.UserSubscription) error {
	if sub.ID != 0 {
		return r.db.Save(sub).Error
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_id", "status", "billing_interval", "current_period_end", "cancel_at_period_end", "updated_at",
		}),
	}).Create(sub).Error
}

// ListDueForExpiry 已申请取消且周期已结束、但仍处于有效状态的订阅
func (r *SubscriptionRepository) ListDueForExpiry(now time.Time) ([]*model.UserSubscription, error) {
	var subs []*model.UserSubscription
	err := r.db.Where("cancel_at_period_end = ? AND current_period_end <= ? AND status IN ?",
		true, now, []string{model.SubscriptionStatusActive, model.SubscriptionStatusTrialing}).
		Order("current_period_end ASC").
		Find(&subs).Error
	return subs, err
}

// MarkExpired 条件更新，避免与用户同时发起的恢复订阅冲突
func (r *SubscriptionRepository) MarkExpired(id int64, now time.Time) (bool, error) {
	tx := r.db.Model(&model.UserSubscription{}).
		Where("id = ? AND cancel_at_period_end = ? AND current_period_end <= ?", id, true, now).
		Updates(map[string]interface{}{
			"status":               model.SubscriptionStatusCanceled,
			"cancel_at_period_end": false,
		})
	return tx.RowsAffected == 1, tx.Error
}

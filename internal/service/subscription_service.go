package service

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/model"
	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/repository"
	"github.com/qs3c/coach_go_server/internal/subscription"
)

// SubscriptionService 订阅状态机的持久化封装
type SubscriptionService struct {
	repo   *repository.SubscriptionRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewSubscriptionService(repo *repository.SubscriptionRepository, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// load 没有订阅记录时返回 nil
func (s *SubscriptionService) load(userID int64) (*model.UserSubscription, error) {
	sub, err := s.repo.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return sub, err
}

// Get 获取订阅状态，未订阅视为免费套餐
func (s *SubscriptionService) Get(userID int64) (*dto.SubscriptionInfo, error) {
	sub, err := s.load(userID)
	if err != nil {
		return nil, err
	}
	return s.buildInfo(sub), nil
}

// Upgrade 升级到付费套餐，开始新的计费周期
func (s *SubscriptionService) Upgrade(userID int64, req *dto.UpgradeRequest) (*dto.SubscriptionInfo, error) {
	sub, err := s.load(userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub = &model.UserSubscription{UserID: userID}
	}

	if err := subscription.Upgrade(sub, req.PlanID, req.Interval, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription upgraded",
		zap.Int64("user_id", userID),
		zap.String("plan", sub.PlanID),
		zap.String("interval", sub.Interval),
		zap.Time("period_end", sub.CurrentPeriodEnd),
	)
	return s.buildInfo(sub), nil
}

// Cancel 周期结束时取消
func (s *SubscriptionService) Cancel(userID int64) (*dto.SubscriptionInfo, error) {
	return s.mutate(userID, "canceled at period end", func(sub *model.UserSubscription, _ time.Time) error {
		return subscription.Cancel(sub)
	})
}

// Reactivate 撤销取消
func (s *SubscriptionService) Reactivate(userID int64) (*dto.SubscriptionInfo, error) {
	return s.mutate(userID, "reactivated", subscription.Reactivate)
}

func (s *SubscriptionService) mutate(userID int64, action string, apply func(*model.UserSubscription, time.Time) error) (*dto.SubscriptionInfo, error) {
	sub, err := s.load(userID)
	if err != nil {
		return nil, err
	}
	if err := apply(sub, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(sub); err != nil {
		return nil, err
	}
	s.logger.Info("subscription "+action, zap.Int64("user_id", userID), zap.String("plan", sub.PlanID))
	return s.buildInfo(sub), nil
}

// ExpireDue 把宽限期已结束的订阅标记为 canceled，dryRun 时只统计
func (s *SubscriptionService) ExpireDue(dryRun bool) (int, error) {
	now := s.now()
	due, err := s.repo.ListDueForExpiry(now)
	if err != nil {
		return 0, err
	}
	if dryRun {
		return len(due), nil
	}

	expired := 0
	for _, sub := range due {
		if !subscription.Expire(sub, now) {
			continue
		}
		ok, err := s.repo.MarkExpired(sub.ID, now)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
			s.logger.Info("subscription expired", zap.Int64("user_id", sub.UserID), zap.String("plan", sub.PlanID))
		}
	}
	return expired, nil
}

// EffectivePlan 当前实际生效的套餐
func (s *SubscriptionService) EffectivePlan(userID int64) (string, error) {
	sub, err := s.load(userID)
	if err != nil {
		return "", err
	}
	return subscription.EffectivePlan(sub, s.now()), nil
}

// HasAccess 判断用户当前套餐是否包含某项功能
func (s *SubscriptionService) HasAccess(userID int64, feature string) (*dto.AccessResponse, error) {
	planID, err := s.EffectivePlan(userID)
	if err != nil {
		return nil, err
	}
	return &dto.AccessResponse{
		Feature: feature,
		Plan:    planID,
		Allowed: subscription.HasFeatureAccess(planID, feature),
	}, nil
}

func (s *SubscriptionService) buildInfo(sub *model.UserSubscription) *dto.SubscriptionInfo {
	effective := subscription.EffectivePlan(sub, s.now())
	plan, _ := subscription.Lookup(effective)

	info := &dto.SubscriptionInfo{
		PlanID:        subscription.PlanFree,
		EffectivePlan: effective,
		Status:        model.SubscriptionStatusNone,
		Features:      plan.Features,
	}
	if sub == nil {
		return info
	}

	info.PlanID = sub.PlanID
	info.Status = sub.Status
	info.Interval = sub.Interval
	info.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	if !sub.CurrentPeriodEnd.IsZero() {
		info.CurrentPeriodEnd = sub.CurrentPeriodEnd.Format(time.RFC3339)
	}
	return info
}

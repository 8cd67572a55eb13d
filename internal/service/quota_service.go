package service

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/model"
	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/repository"
	"github.com/qs3c/coach_go_server/internal/subscription"
)

var ErrQuotaExceeded = errors.New("今日分析次数已用完")

// PlanResolver 查询用户当前生效的套餐
type PlanResolver interface {
	EffectivePlan(userID int64) (string, error)
}

// QuotaService 按套餐限制每日分析次数，次数在本地零点重置
type QuotaService struct {
	userRepo *repository.UserRepository
	plans    PlanResolver
	loc      *time.Location
	now      func() time.Time
}

func NewQuotaService(userRepo *repository.UserRepository, plans PlanResolver, loc *time.Location) *QuotaService {
	if loc == nil {
		loc = time.Local
	}
	return &QuotaService{
		userRepo: userRepo,
		plans:    plans,
		loc:      loc,
		now:      time.Now,
	}
}

// dailyLimit 返回套餐 ID 与每日上限
func (s *QuotaService) dailyLimit(userID int64) (string, int, error) {
	planID, err := s.plans.EffectivePlan(userID)
	if err != nil {
		return "", 0, err
	}
	plan, ok := subscription.Lookup(planID)
	if !ok {
		plan, _ = subscription.Lookup(subscription.PlanFree)
	}
	return plan.ID, plan.DailyAnalyses, nil
}

// CheckQuota 检查配额
func (s *QuotaService) CheckQuota(userID int64) (bool, error) {
	user, err := s.freshUser(userID)
	if err != nil {
		return false, err
	}
	_, limit, err := s.dailyLimit(userID)
	if err != nil {
		return false, err
	}
	if limit == subscription.Unlimited {
		return true, nil
	}
	return user.QuotaUsedToday < limit, nil
}

// UseQuota 占用一次配额，达到上限返回 ErrQuotaExceeded
func (s *QuotaService) UseQuota(userID int64) error {
	if _, err := s.freshUser(userID); err != nil {
		return err
	}
	_, limit, err := s.dailyLimit(userID)
	if err != nil {
		return err
	}
	// 不限次数的套餐仍计数，用于展示
	if limit == subscription.Unlimited {
		return s.userRepo.IncrementQuotaUsed(userID)
	}
	ok, err := s.userRepo.ConsumeQuota(userID, limit)
	if err != nil {
		return err
	}
	if !ok {
		return ErrQuotaExceeded
	}
	return nil
}

// RefundQuota 退还配额
func (s *QuotaService) RefundQuota(userID int64) error {
	return s.userRepo.DecrementQuotaUsed(userID)
}

// ResetAllQuotas 重置所有用户配额
func (s *QuotaService) ResetAllQuotas() (int64, error) {
	return s.userRepo.ResetAllQuotas(s.nextReset())
}

// GetQuotaInfo 获取用户配额信息
func (s *QuotaService) GetQuotaInfo(userID int64) (*dto.QuotaInfo, error) {
	user, err := s.freshUser(userID)
	if err != nil {
		return nil, err
	}
	planID, limit, err := s.dailyLimit(userID)
	if err != nil {
		return nil, err
	}

	info := &dto.QuotaInfo{
		Plan:       planID,
		DailyLimit: limit,
		DailyUsed:  user.QuotaUsedToday,
		Unlimited:  limit == subscription.Unlimited,
	}
	if info.Unlimited {
		info.DailyRemain = subscription.Unlimited
	} else {
		info.DailyRemain = limit - user.QuotaUsedToday
		if info.DailyRemain < 0 {
			info.DailyRemain = 0
		}
	}
	if user.QuotaResetAt != nil {
		info.ResetAt = user.QuotaResetAt.Format(time.RFC3339)
	}

	return info, nil
}

// freshUser 读取用户，必要时先重置过期的计数
func (s *QuotaService) freshUser(userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if user.QuotaResetAt == nil || !s.now().Before(*user.QuotaResetAt) {
		next := s.nextReset()
		if err := s.userRepo.ResetQuota(userID, next); err != nil {
			return nil, err
		}
		user.QuotaUsedToday = 0
		user.QuotaResetAt = &next
	}

	return user, nil
}

// nextReset 下一个本地零点
func (s *QuotaService) nextReset() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, s.loc)
}

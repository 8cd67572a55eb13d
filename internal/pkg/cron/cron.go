package cron

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	quotaResetSpec = "0 0 * * *"
	sweepSpec      = "@hourly"
	staleJobAfter  = time.Hour
	staleJobReason = "任务超时未完成"
)

// QuotaResetter 每日配额重置
type QuotaResetter interface {
	ResetAllQuotas() (int64, error)
}

// SubscriptionExpirer 到期订阅处理
type SubscriptionExpirer interface {
	ExpireDue(dryRun bool) (int, error)
}

// StaleJobFailer 处理卡住的分析任务
type StaleJobFailer interface {
	FailStale(before time.Time, message string, dryRun bool) (int64, error)
}

// SweepResult 一次清理的统计
type SweepResult struct {
	ExpiredSubscriptions int
	FailedJobs           int64
}

type Service struct {
	quota  QuotaResetter
	subs   SubscriptionExpirer
	jobs   StaleJobFailer
	logger *zap.Logger
	cron   *cron.Cron
	now    func() time.Time
}

func NewService(quota QuotaResetter, subs SubscriptionExpirer, jobs StaleJobFailer, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := zapLogger{logger.Sugar()}
	return &Service{
		quota:  quota,
		subs:   subs,
		jobs:   jobs,
		logger: logger,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		now:    time.Now,
	}
}

// zapLogger 把 cron 内部日志（包括恢复的 panic）接入 zap
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l zapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Start 注册并启动定时任务
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(quotaResetSpec, s.resetDailyQuotas); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(sweepSpec, func() {
		if _, err := s.Sweep(false); err != nil {
			s.logger.Error("sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("cron service started", zap.Int("entries", len(s.cron.Entries())))
	return nil
}

// Stop 停止调度并等待运行中的任务结束
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("cron service stopped")
}

func (s *Service) resetDailyQuotas() {
	if s.quota == nil {
		return
	}
	n, err := s.quota.ResetAllQuotas()
	if err != nil {
		s.logger.Error("daily quota reset failed", zap.Error(err))
		return
	}
	s.logger.Info("daily quota reset completed", zap.Int64("users", n))
}

// Sweep 把到期的订阅置为 canceled，并把超时的任务标记为失败
func (s *Service) Sweep(dryRun bool) (*SweepResult, error) {
	var result SweepResult
	if s.subs != nil {
		n, err := s.subs.ExpireDue(dryRun)
		if err != nil {
			return nil, err
		}
		result.ExpiredSubscriptions = n
	}
	if s.jobs != nil {
		n, err := s.jobs.FailStale(s.now().Add(-staleJobAfter), staleJobReason, dryRun)
		if err != nil {
			return nil, err
		}
		result.FailedJobs = n
	}

	if result.ExpiredSubscriptions > 0 || result.FailedJobs > 0 {
		s.logger.Info("sweep summary",
			zap.Bool("dry_run", dryRun),
			zap.Int("expired_subscriptions", result.ExpiredSubscriptions),
			zap.Int64("failed_jobs", result.FailedJobs),
		)
	}
	return &result, nil
}

// RunNow 立即执行配额重置（用于测试或手动触发）
func (s *Service) RunNow() error {
	if s.quota == nil {
		return nil
	}
	_, err := s.quota.ResetAllQuotas()
	return err
}

package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/pkg/pubsub"
	"github.com/qs3c/coach_go_server/internal/pkg/queue"
	"github.com/qs3c/coach_go_server/internal/service"
)

// JobRunner 执行单个分析任务
type JobRunner interface {
	ProcessJob(ctx context.Context, msg *queue.JobMessage, progress service.ProgressFunc) (*dto.ConversationResult, error)
}

// ProgressPublisher 推送任务进度
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, msg *pubsub.ProgressMessage) error
}

// JobSource 任务来源
type JobSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.JobMessage, error)
}

// Processor 任务处理器
type Processor struct {
	runner    JobRunner
	publisher ProgressPublisher
	logger    *zap.Logger
}

// NewProcessor 创建任务处理器
func NewProcessor(runner JobRunner, publisher ProgressPublisher, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		runner:    runner,
		publisher: publisher,
		logger:    logger,
	}
}

// Process 处理分析任务，每个阶段推送一次进度
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	publish := func(m *pubsub.ProgressMessage) {
		m.UserID = msg.UserID
		m.JobID = msg.JobID
		if err := p.publisher.PublishProgress(ctx, m); err != nil {
			p.logger.Warn("publish progress failed", zap.Int64("job_id", msg.JobID), zap.Error(err))
		}
	}

	var lastStep string
	result, err := p.runner.ProcessJob(ctx, msg, func(step string) {
		lastStep = step
		if step == pubsub.StepDone {
			return
		}
		publish(&pubsub.ProgressMessage{Status: "processing", Step: step})
	})
	if err != nil {
		// 重复投递的任务直接丢弃，不再推送
		if errors.Is(err, service.ErrJobFinished) || errors.Is(err, service.ErrJobNotFound) {
			p.logger.Info("skip job", zap.Int64("job_id", msg.JobID), zap.Error(err))
			return nil
		}
		if errors.Is(err, service.ErrJobRequeued) {
			publish(&pubsub.ProgressMessage{Status: "queued", Step: pubsub.StepQueued})
			p.logger.Info("job requeued", zap.Int64("job_id", msg.JobID))
			return nil
		}
		publish(&pubsub.ProgressMessage{Status: "failed", Step: lastStep, Error: err.Error()})
		return err
	}

	publish(&pubsub.ProgressMessage{
		Status:         "completed",
		Step:           pubsub.StepDone,
		ConversationID: result.ID,
	})
	p.logger.Info("job completed",
		zap.Int64("job_id", msg.JobID),
		zap.Int64("conversation_id", result.ID),
		zap.Bool("used_fallback", result.UsedFallback),
		zap.Bool("analysis_failed", result.Analysis.Failed),
	)
	return nil
}

// Pool 从队列拉取任务的固定大小 worker 池
type Pool struct {
	source    JobSource
	processor *Processor
	size      int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewPool 创建 worker 池
func NewPool(source JobSource, processor *Processor, size int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		source:    source,
		processor: processor,
		size:      size,
		timeout:   5 * time.Second,
		logger:    logger,
	}
}

// Run 阻塞直到 ctx 取消且所有 worker 退出
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.loop(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	log := p.logger.With(zap.Int("worker", workerID))
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		default:
		}

		msg, err := p.source.Pop(ctx, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("pop job failed", zap.Error(err))
			continue
		}
		if msg == nil {
			continue // 超时，继续等待
		}

		log.Info("processing job", zap.Int64("job_id", msg.JobID))
		if err := p.processor.Process(ctx, msg); err != nil {
			log.Warn("job failed", zap.Int64("job_id", msg.JobID), zap.Error(err))
		}
	}
}

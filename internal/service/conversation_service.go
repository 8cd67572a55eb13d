package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/config"
	"github.com/qs3c/coach_go_server/internal/insight"
	"github.com/qs3c/coach_go_server/internal/model"
	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/pkg/inflight"
	"github.com/qs3c/coach_go_server/internal/pkg/llm"
	"github.com/qs3c/coach_go_server/internal/pkg/metrics"
	"github.com/qs3c/coach_go_server/internal/pkg/pubsub"
	"github.com/qs3c/coach_go_server/internal/pkg/queue"
	"github.com/qs3c/coach_go_server/internal/recorder"
	"github.com/qs3c/coach_go_server/internal/repository"
	"github.com/qs3c/coach_go_server/internal/transcript"
)

var (
	ErrAnalysisInProgress   = errors.New("已有对话正在分析，请稍后再试")
	ErrRecordingNotFound    = errors.New("录音不存在或已过期")
	ErrConversationNotFound = errors.New("对话记录不存在")
	ErrJobNotFound          = errors.New("分析任务不存在")
	ErrJobFinished          = errors.New("分析任务已结束")
	ErrAsyncDisabled        = errors.New("异步分析未启用")
	ErrJobRequeued          = errors.New("已有分析进行中，任务重新排队")
)

// 用户已有分析进行中时，任务延迟后放回队列
const requeueDelay = 2 * time.Second

// ReasonDemo 演示对话的回退原因
const ReasonDemo = "demo"

// Transcriber 语音转写
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Analyzer 对话分析
type Analyzer interface {
	Analyze(ctx context.Context, apiKey, transcriptText string) (*llm.Result, error)
}

// JobQueue 异步任务队列
type JobQueue interface {
	Push(ctx context.Context, msg *queue.JobMessage) error
}

// ProgressFunc 流水线进入新阶段时回调
type ProgressFunc func(step string)

// ConversationService 录音 -> 转写 -> 分析 -> 指标 -> 保存
type ConversationService struct {
	convRepo    *repository.ConversationRepository
	jobRepo     *repository.JobRepository
	recordings  repository.RecordingStore
	settings    *SettingsService
	quota       *QuotaService
	guard       inflight.Guard
	transcriber Transcriber
	analyzer    Analyzer
	queue       JobQueue
	metrics     *metrics.Metrics
	logger      *zap.Logger
	loc         *time.Location
	demoMode    bool
	now         func() time.Time
	retryDelay  time.Duration

	genMu     sync.Mutex
	generator *insight.Generator
}

func NewConversationService(
	convRepo *repository.ConversationRepository,
	jobRepo *repository.JobRepository,
	recordings repository.RecordingStore,
	settings *SettingsService,
	quota *QuotaService,
	guard inflight.Guard,
	transcriber Transcriber,
	analyzer Analyzer,
	jobQueue JobQueue,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		convRepo:    convRepo,
		jobRepo:     jobRepo,
		recordings:  recordings,
		settings:    settings,
		quota:       quota,
		guard:       guard,
		transcriber: transcriber,
		analyzer:    analyzer,
		queue:       jobQueue,
		metrics:     m,
		logger:      logger,
		loc:         cfg.App.Location(),
		demoMode:    cfg.App.DemoMode,
		now:         time.Now,
		retryDelay:  requeueDelay,
		generator:   insight.NewGenerator(rand.New(rand.NewSource(time.Now().UnixNano()))),
	}
}

// Analyze 同步分析一段录音
func (s *ConversationService) Analyze(ctx context.Context, userID, recordingID int64) (*dto.ConversationResult, error) {
	release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.quota.UseQuota(userID); err != nil {
		return nil, err
	}

	result, err := s.analyzeRecording(ctx, userID, recordingID, nil)
	s.settle(userID, result, err)
	return result, err
}

// Demo 使用示例对话走一遍分析流程
func (s *ConversationService) Demo(ctx context.Context, userID int64) (*dto.ConversationResult, error) {
	release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.quota.UseQuota(userID); err != nil {
		return nil, err
	}

	start := s.now()
	settings, err := s.settings.Load(userID)
	if err != nil {
		s.settle(userID, nil, err)
		return nil, err
	}
	decision := transcript.Decision{Text: transcript.FallbackTranscript, UsedFallback: true, Reason: ReasonDemo}

	result, err := s.finish(ctx, userID, nil, settings, decision, true, nil, start)
	s.settle(userID, result, err)
	return result, err
}

// Submit 创建异步分析任务，配额在提交时占用
func (s *ConversationService) Submit(ctx context.Context, userID, recordingID int64) (*dto.SubmitJobResponse, error) {
	if s.queue == nil {
		return nil, ErrAsyncDisabled
	}
	if _, err := s.loadRecording(ctx, userID, recordingID); err != nil {
		return nil, err
	}
	if err := s.quota.UseQuota(userID); err != nil {
		return nil, err
	}

	job := &model.ConversationJob{
		UserID:      userID,
		RecordingID: recordingID,
		Status:      model.JobStatusQueued,
		CurrentStep: pubsub.StepQueued,
	}
	if err := s.jobRepo.Create(job); err != nil {
		s.refund(userID)
		return nil, err
	}

	if err := s.queue.Push(ctx, &queue.JobMessage{JobID: job.ID, UserID: userID, RecordingID: recordingID}); err != nil {
		if markErr := s.jobRepo.MarkFailed(job.ID, "enqueue failed", s.now()); markErr != nil {
			s.logger.Error("mark job failed", zap.Int64("job_id", job.ID), zap.Error(markErr))
		}
		s.refund(userID)
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Info("conversation job queued", zap.Int64("job_id", job.ID), zap.Int64("user_id", userID))
	return &dto.SubmitJobResponse{JobID: job.ID}, nil
}

// ProcessJob worker 调用：执行流水线并维护任务状态
func (s *ConversationService) ProcessJob(ctx context.Context, msg *queue.JobMessage, progress ProgressFunc) (*dto.ConversationResult, error) {
	job, err := s.jobRepo.GetByID(msg.JobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.Status != model.JobStatusQueued {
		return nil, ErrJobFinished
	}

	release, err := s.acquire(ctx, job.UserID)
	if err != nil {
		if errors.Is(err, ErrAnalysisInProgress) && s.queue != nil {
			qerr := s.requeue(ctx, msg)
			if qerr == nil {
				return nil, ErrJobRequeued
			}
			err = fmt.Errorf("requeue job: %w", qerr)
		}
		s.failJob(job, err)
		return nil, err
	}
	defer release()

	started := s.now()
	if err := s.jobRepo.MarkStarted(job.ID, started); err != nil {
		s.failJob(job, err)
		return nil, err
	}
	job.StartedAt = &started

	step := func(name string) {
		if err := s.jobRepo.UpdateStep(job.ID, name); err != nil {
			s.logger.Warn("update job step failed", zap.Int64("job_id", job.ID), zap.Error(err))
		}
		if progress != nil {
			progress(name)
		}
	}

	result, err := s.analyzeRecording(ctx, job.UserID, job.RecordingID, step)
	if err != nil {
		s.failJob(job, err)
		return nil, err
	}
	if result.Analysis.Failed {
		s.refund(job.UserID)
	}

	if err := s.jobRepo.MarkCompleted(job, result.ID, s.now()); err != nil {
		return nil, err
	}
	return result, nil
}

// requeue 等待 retryDelay 后把任务放回队尾；退出时立即放回
func (s *ConversationService) requeue(ctx context.Context, msg *queue.JobMessage) error {
	timer := time.NewTimer(s.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	pushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.queue.Push(pushCtx, msg); err != nil {
		return err
	}
	s.logger.Info("conversation job requeued", zap.Int64("job_id", msg.JobID), zap.Int64("user_id", msg.UserID))
	return nil
}

func (s *ConversationService) failJob(job *model.ConversationJob, cause error) {
	if err := s.jobRepo.MarkFailed(job.ID, cause.Error(), s.now()); err != nil {
		s.logger.Error("mark job failed", zap.Int64("job_id", job.ID), zap.Error(err))
	}
	s.refund(job.UserID)
}

// Get 对话详情
func (s *ConversationService) Get(userID, id int64) (*dto.ConversationResult, error) {
	conv, err := s.convRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conv.UserID != userID {
		return nil, ErrConversationNotFound
	}
	return s.buildResult(conv, decodeSegments(conv), nil), nil
}

// List 对话列表，最新在前
func (s *ConversationService) List(userID int64, page, pageSize int) ([]*dto.ConversationListItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	convs, total, err := s.convRepo.ListByUser(userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.ConversationListItem, 0, len(convs))
	for _, c := range convs {
		items = append(items, &dto.ConversationListItem{
			ID:             c.ID,
			Title:          c.Title,
			Duration:       c.Duration,
			DurationText:   recorder.FormatElapsed(c.Duration),
			Model:          c.Model,
			AnalysisFailed: c.AnalysisFailed,
			UsedFallback:   c.UsedFallback,
			CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, total, nil
}

// Delete 删除对话记录
func (s *ConversationService) Delete(userID, id int64) error {
	ok, err := s.convRepo.Delete(id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConversationNotFound
	}
	return nil
}

// GetJob 任务状态
func (s *ConversationService) GetJob(userID, jobID int64) (*dto.JobInfo, error) {
	job, err := s.jobRepo.GetByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return &dto.JobInfo{
		JobID:          job.ID,
		Status:         job.Status,
		CurrentStep:    job.CurrentStep,
		ConversationID: job.ConversationID,
		ErrorMessage:   job.ErrorMessage,
		ElapsedSeconds: job.ElapsedSeconds,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *ConversationService) acquire(ctx context.Context, userID int64) (func(), error) {
	key := inflight.UserKey(userID)
	ok, err := s.guard.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAnalysisInProgress
	}
	return func() {
		// 请求被取消后仍然要释放
		if err := s.guard.Release(context.Background(), key); err != nil {
			s.logger.Warn("release in-flight guard failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}, nil
}

// settle 出错或分析失败时退还配额
func (s *ConversationService) settle(userID int64, result *dto.ConversationResult, err error) {
	if err == nil && result != nil && !result.Analysis.Failed {
		return
	}
	s.refund(userID)
}

func (s *ConversationService) refund(userID int64) {
	if err := s.quota.RefundQuota(userID); err != nil {
		s.logger.Error("refund quota failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (s *ConversationService) loadRecording(ctx context.Context, userID, recordingID int64) (*recorder.Recording, error) {
	rec, err := s.recordings.Get(ctx, userID, recordingID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordingNotFound) {
			return nil, ErrRecordingNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *ConversationService) analyzeRecording(ctx context.Context, userID, recordingID int64, progress ProgressFunc) (*dto.ConversationResult, error) {
	start := s.now()
	report(progress, pubsub.StepTranscribing)

	settings, err := s.settings.Load(userID)
	if err != nil {
		return nil, err
	}
	rec, err := s.loadRecording(ctx, userID, recordingID)
	if err != nil {
		return nil, err
	}

	decision, err := s.transcribe(ctx, userID, settings, rec)
	if err != nil {
		return nil, err
	}

	return s.finish(ctx, userID, rec, settings, decision, false, progress, start)
}

// transcribe 转写并应用回退策略；上游失败会持久化关闭转写开关
func (s *ConversationService) transcribe(ctx context.Context, userID int64, settings *model.UserSettings, rec *recorder.Recording) (transcript.Decision, error) {
	var raw string
	var upstreamErr error
	if settings.TranscriptionEnabled {
		raw, upstreamErr = s.transcriber.Transcribe(ctx, rec.AudioData, rec.MimeType)
		// 调用方取消不算上游故障
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transcript.Decision{}, ctxErr
		}
	}

	decision := transcript.Decide(settings.TranscriptionEnabled, upstreamErr, raw)
	if decision.UsedFallback {
		s.metrics.ObserveFallback(decision.Reason)
		if decision.Reason != transcript.ReasonDisabled {
			s.logger.Warn("transcription unavailable, using example transcript",
				zap.Int64("user_id", userID),
				zap.String("reason", decision.Reason),
				zap.Error(upstreamErr),
			)
		}
	}

	if decision.DisableTranscription {
		if err := s.settings.DisableTranscription(userID); err != nil {
			s.logger.Error("disable transcription failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		settings.TranscriptionEnabled = false
	}
	return decision, nil
}

func (s *ConversationService) finish(
	ctx context.Context,
	userID int64,
	rec *recorder.Recording,
	settings *model.UserSettings,
	decision transcript.Decision,
	demo bool,
	progress ProgressFunc,
	start time.Time,
) (*dto.ConversationResult, error) {
	text := transcript.Format(decision.Text)
	segments := transcript.GetSpeakerSegments(text)

	report(progress, pubsub.StepAnalyzing)
	outcome := s.analyze(ctx, userID, settings.AnalysisAPIKey, text)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	report(progress, pubsub.StepSaving)

	var synthetic *insight.SyntheticMetrics
	if decision.UsedFallback && (demo || s.demoMode) {
		synthetic = s.generateSynthetic()
	}

	segJSON, err := json.Marshal(segments)
	if err != nil {
		return nil, err
	}

	conv := &model.Conversation{
		UserID:         userID,
		Transcript:     text,
		Segments:       string(segJSON),
		AnalysisText:   outcome.Text,
		Model:          outcome.Model,
		AnalysisFailed: outcome.Failed,
		FailureKind:    outcome.FailureKind,
		UsedFallback:   decision.UsedFallback,
		FallbackReason: decision.Reason,
	}
	if rec != nil {
		conv.RecordingID = rec.ID
		conv.Duration = rec.Duration
		conv.Title = "Conversation on " + rec.CreatedAt.In(s.loc).Format("Jan 2, 2006 at 15:04")
	} else {
		conv.Title = "Demo conversation"
	}

	if err := s.convRepo.Create(conv); err != nil {
		return nil, err
	}

	label := "ok"
	if outcome.Failed {
		label = "failed"
	}
	s.metrics.ObserveAnalysis(label, s.now().Sub(start))

	report(progress, pubsub.StepDone)
	return s.buildResult(conv, segments, synthetic), nil
}

// analyze 失败时返回致歉文案，同时保留明确的失败标记
func (s *ConversationService) analyze(ctx context.Context, userID int64, apiKey, text string) dto.AnalysisOutcome {
	res, err := s.analyzer.Analyze(ctx, apiKey, text)
	if err == nil {
		return dto.AnalysisOutcome{Text: res.Text, Model: res.Model}
	}

	kind := llm.KindOf(err)
	if kind == "" {
		kind = llm.KindNetwork
	}
	s.metrics.ObserveAnalysisFailure(string(kind))
	s.logger.Warn("conversation analysis failed",
		zap.Int64("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return dto.AnalysisOutcome{
		Text:        llm.ApologyText,
		Model:       llm.FailureModel,
		Failed:      true,
		FailureKind: string(kind),
	}
}

func (s *ConversationService) generateSynthetic() *insight.SyntheticMetrics {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generator.Generate()
}

func (s *ConversationService) buildResult(conv *model.Conversation, segments []transcript.Segment, synthetic *insight.SyntheticMetrics) *dto.ConversationResult {
	return &dto.ConversationResult{
		ID:           conv.ID,
		RecordingID:  conv.RecordingID,
		Title:        conv.Title,
		Duration:     conv.Duration,
		DurationText: recorder.FormatElapsed(conv.Duration),
		Transcript:   conv.Transcript,
		Segments:     segments,
		Analysis: dto.AnalysisOutcome{
			Text:        conv.AnalysisText,
			Model:       conv.Model,
			Failed:      conv.AnalysisFailed,
			FailureKind: conv.FailureKind,
		},
		UsedFallback:   conv.UsedFallback,
		FallbackReason: conv.FallbackReason,
		Metrics:        insight.Derive(segments),
		Synthetic:      synthetic,
		Insights:       insight.DefaultCards(),
		CreatedAt:      conv.CreatedAt.Format(time.RFC3339),
	}
}

// decodeSegments 旧数据没有片段时从转写文本重新切分
func decodeSegments(conv *model.Conversation) []transcript.Segment {
	var segments []transcript.Segment
	if conv.Segments != "" && json.Unmarshal([]byte(conv.Segments), &segments) == nil {
		return segments
	}
	return transcript.GetSpeakerSegments(conv.Transcript)
}

func report(progress ProgressFunc, step string) {
	if progress != nil {
		progress(step)
	}
}

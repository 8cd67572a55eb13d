package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/coach_go_server/config"
	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/pkg/metrics"
	"github.com/qs3c/coach_go_server/internal/pkg/ws"
	"github.com/qs3c/coach_go_server/internal/recorder"
	"github.com/qs3c/coach_go_server/internal/repository"
)

// Notifier 向用户的 WebSocket 连接推送消息
type Notifier interface {
	SendToUser(userID int64, msg *ws.Message) error
}

type recorderSession struct {
	probe    *recorder.Probe
	device   *recorder.StreamDevice
	rec      *recorder.Recorder
	cancel   func()
	lastSeen time.Time
}

// RecorderService 每个用户一个录音会话，音频分片由客户端推送
type RecorderService struct {
	store    repository.RecordingStore
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	maxBytes int64
	mimeType string
	opts     []recorder.Option
	idleTTL  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[int64]*recorderSession
}

func NewRecorderService(store repository.RecordingStore, notifier Notifier, m *metrics.Metrics, cfg *config.RecorderConfig, logger *zap.Logger) *RecorderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	mimeType := cfg.MimeType
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return &RecorderService{
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		maxBytes: cfg.MaxRecordingBytes,
		mimeType: mimeType,
		idleTTL:  cfg.SessionIdleTTL(),
		now:      time.Now,
		sessions: make(map[int64]*recorderSession),
	}
}

func (s *RecorderService) session(userID int64) *recorderSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		sess.lastSeen = s.now()
		return sess
	}

	probe := recorder.NewProbe(recorder.PermissionPrompt)
	device := recorder.NewStreamDevice(s.maxBytes)
	opts := append([]recorder.Option{recorder.WithMimeType(s.mimeType)}, s.opts...)
	sess := &recorderSession{
		probe:    probe,
		device:   device,
		rec:      recorder.New(probe, device, opts...),
		lastSeen: s.now(),
	}

	changes, cancel := probe.Subscribe()
	sess.cancel = cancel
	go s.forwardPermission(userID, changes)

	s.sessions[userID] = sess
	return sess
}

// forwardPermission 把权限变化推送给前端，用于显示或隐藏提示横幅
func (s *RecorderService) forwardPermission(userID int64, changes <-chan recorder.Permission) {
	for p := range changes {
		s.notify(userID, ws.TypePermissionChanged, &dto.PermissionResponse{Permission: string(p)})
	}
}

func (s *RecorderService) notify(userID int64, msgType string, data interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendToUser(userID, &ws.Message{Type: msgType, Data: data}); err != nil {
		s.logger.Debug("push recorder event failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// Permission 当前麦克风权限
func (s *RecorderService) Permission(userID int64) recorder.Permission {
	return s.session(userID).probe.Query()
}

// SetPermission 客户端上报浏览器权限变化
func (s *RecorderService) SetPermission(userID int64, permission string) (recorder.Permission, error) {
	p, err := recorder.ParsePermission(permission)
	if err != nil {
		return "", err
	}
	if err := s.session(userID).probe.Set(p); err != nil {
		return "", err
	}
	return p, nil
}

// Status 录音器快照
func (s *RecorderService) Status(userID int64) *dto.RecorderStatus {
	st := s.session(userID).rec.Status()
	return &dto.RecorderStatus{
		State:       string(st.State),
		Permission:  string(st.Permission),
		Elapsed:     st.Elapsed,
		ElapsedText: recorder.FormatElapsed(st.Elapsed),
	}
}

// Start 开始录音；权限被拒时不会打开设备
func (s *RecorderService) Start(ctx context.Context, userID int64) (*dto.RecorderStatus, error) {
	sess := s.session(userID)
	if err := sess.rec.Start(ctx); err != nil {
		if errors.Is(err, recorder.ErrPermissionDenied) {
			s.metrics.ObserveRecording("denied")
		}
		return nil, err
	}

	status := s.Status(userID)
	s.notify(userID, ws.TypeRecorderStatus, status)
	return status, nil
}

// PushChunk 写入一段音频
func (s *RecorderService) PushChunk(ctx context.Context, userID int64, chunk []byte) error {
	return s.session(userID).device.Push(ctx, chunk)
}

// Stop 结束录音并保存到临时存储
func (s *RecorderService) Stop(ctx context.Context, userID int64) (*dto.RecordingInfo, error) {
	rec, err := s.session(userID).rec.Stop(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, userID, rec); err != nil {
		s.metrics.ObserveRecording("save_failed")
		return nil, err
	}
	s.metrics.ObserveRecording("saved")
	s.logger.Info("recording saved",
		zap.Int64("user_id", userID),
		zap.Int64("recording_id", rec.ID),
		zap.Int("duration", rec.Duration),
		zap.Int("bytes", rec.Size()),
	)

	s.notify(userID, ws.TypeRecorderStatus, s.Status(userID))

	return &dto.RecordingInfo{
		ID:           rec.ID,
		Duration:     rec.Duration,
		DurationText: recorder.FormatElapsed(rec.Duration),
		MimeType:     rec.MimeType,
		Size:         rec.Size(),
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
	}, nil
}

// Discard 放弃进行中的录音，不保存；未在录音时什么也不做
func (s *RecorderService) Discard(ctx context.Context, userID int64) error {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok || sess.rec.State() != recorder.StateRecording {
		return nil
	}

	if _, err := sess.rec.Stop(ctx); err != nil && !errors.Is(err, recorder.ErrNotRecording) {
		return err
	}
	s.metrics.ObserveRecording("discarded")
	s.logger.Info("recording discarded", zap.Int64("user_id", userID))
	s.notify(userID, ws.TypeRecorderStatus, s.Status(userID))
	return nil
}

// EvictIdle 回收长时间未访问且未在录音的会话，返回回收数量
func (s *RecorderService) EvictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idleTTL)
	evicted := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.After(cutoff) || sess.rec.State() == recorder.StateRecording {
			continue
		}
		sess.cancel()
		delete(s.sessions, id)
		evicted++
	}
	return evicted
}

// RunJanitor 定期回收空闲会话，直到 ctx 结束
func (s *RecorderService) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(s.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				s.logger.Debug("idle recorder sessions evicted", zap.Int("count", n))
			}
		}
	}
}

// ListRecordings 未过期的录音，最新在前
func (s *RecorderService) ListRecordings(ctx context.Context, userID int64) ([]dto.RecordingInfo, error) {
	infos, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RecordingInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, dto.RecordingInfo{
			ID:           info.ID,
			Duration:     info.Duration,
			DurationText: recorder.FormatElapsed(info.Duration),
			MimeType:     info.MimeType,
			Size:         info.Size,
			CreatedAt:    info.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}

// DeleteRecording 删除录音
func (s *RecorderService) DeleteRecording(ctx context.Context, userID, id int64) error {
	return s.store.Delete(ctx, userID, id)
}

// Close 停止所有权限转发
func (s *RecorderService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.cancel()
		delete(s.sessions, id)
	}
}

package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrNotRecording = errors.New("recorder is not recording")
	ErrInvalidState = errors.New("invalid recorder state")
)

// Recording 结束录音后得到的音频，ID 为结束时刻的毫秒时间戳
type Recording struct {
	ID        int64     `json:"id"`
	Duration  int       `json:"duration"`
	AudioData []byte    `json:"audio_data"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Size 音频字节数
func (r *Recording) Size() int {
	return len(r.AudioData)
}

// TickerFunc 返回计时通道和停止函数
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func defaultTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Status 录音器快照
type Status struct {
	State      State      `json:"state"`
	Permission Permission `json:"permission"`
	Elapsed    int        `json:"elapsed"`
	Chunks     int        `json:"chunks"`
	Bytes      int        `json:"bytes"`
}

type Option func(*Recorder)

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithTicker 替换秒级计时器
func WithTicker(tick TickerFunc) Option {
	return func(r *Recorder) { r.tick = tick }
}

// WithMimeType 设置音频类型
func WithMimeType(mimeType string) Option {
	return func(r *Recorder) { r.mimeType = mimeType }
}

// Recorder 包装采集设备：权限检查、分片累积、按秒计时
type Recorder struct {
	probe    *Probe
	device   Device
	mimeType string
	now      func() time.Time
	tick     TickerFunc

	mu       sync.Mutex
	state    State
	stopping bool
	capture  Capture
	chunks   [][]byte
	bytes    int
	elapsed  int
	quit     chan struct{}
	done     chan struct{}
	tickDone chan struct{}
}

func New(probe *Probe, device Device, opts ...Option) *Recorder {
	r := &Recorder{
		probe:    probe,
		device:   device,
		mimeType: "audio/webm",
		now:      time.Now,
		tick:     defaultTicker,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 开始录音；权限为 denied 时不会打开设备
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()

	if r.state == StateDenied {
		if r.probe.Query() == PermissionDenied {
			r.mu.Unlock()
			return ErrPermissionDenied
		}
		r.state, _ = Transition(r.state, EventReset)
	}

	if r.state == StateIdle && r.probe.Query() == PermissionDenied {
		r.state, _ = Transition(r.state, EventDeny)
		r.mu.Unlock()
		return ErrPermissionDenied
	}

	next, err := Transition(r.state, EventStart)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	r.state = next
	r.mu.Unlock()

	capture, err := r.device.Open(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			r.state, _ = Transition(r.state, EventDeny)
			r.probe.Set(PermissionDenied)
			return ErrPermissionDenied
		}
		r.state, _ = Transition(r.state, EventFail)
		return fmt.Errorf("open capture device: %w", err)
	}

	r.probe.Set(PermissionGranted)
	r.state, _ = Transition(r.state, EventGranted)
	r.capture = capture
	r.chunks = nil
	r.bytes = 0
	r.elapsed = 0
	r.quit = make(chan struct{})
	r.done = make(chan struct{})
	r.tickDone = make(chan struct{})

	go r.collect(capture, r.done)
	go r.count(r.quit, r.tickDone)

	return nil
}

// Stop 结束录音并组装 Recording，回到 Idle
func (r *Recorder) Stop(_ context.Context) (*Recording, error) {
	r.mu.Lock()
	if r.state != StateRecording || r.stopping {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.stopping = true
	capture, quit, done, tickDone := r.capture, r.quit, r.done, r.tickDone
	r.mu.Unlock()

	close(quit)
	<-tickDone
	stopErr := capture.Stop()

	// 采集端停止后会交付完剩余分片再关闭通道
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	rec := &Recording{
		ID:        now.UnixMilli(),
		Duration:  r.elapsed,
		AudioData: bytes.Join(r.chunks, nil),
		MimeType:  r.mimeType,
		CreatedAt: now,
	}

	r.state, _ = Transition(r.state, EventStop)
	r.stopping = false
	r.capture = nil
	r.chunks = nil
	r.bytes = 0

	if stopErr != nil {
		return nil, fmt.Errorf("stop capture: %w", stopErr)
	}
	return rec, nil
}

// State 当前状态
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed 已录制秒数
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Status 返回快照
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		State:      r.state,
		Permission: r.probe.Query(),
		Elapsed:    r.elapsed,
		Chunks:     len(r.chunks),
		Bytes:      r.bytes,
	}
}

func (r *Recorder) collect(capture Capture, done chan struct{}) {
	defer close(done)
	for chunk := range capture.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		r.mu.Lock()
		r.chunks = append(r.chunks, chunk)
		r.bytes += len(chunk)
		r.mu.Unlock()
	}
}

func (r *Recorder) count(quit, tickDone chan struct{}) {
	defer close(tickDone)
	ticks, stop := r.tick(time.Second)
	defer stop()

	for {
		select {
		case <-quit:
			return
		case <-ticks:
			r.mu.Lock()
			r.elapsed++
			r.mu.Unlock()
		}
	}
}

package recorder

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoActiveCapture  = errors.New("no active capture")
	ErrCaptureClosed    = errors.New("capture closed")
	ErrRecordingTooBig  = errors.New("recording exceeds size limit")
)

// Capture 一次进行中的采集，Chunks 在 Stop 后交付完剩余数据再关闭
type Capture interface {
	Chunks() <-chan []byte
	Stop() error
}

// Device 采集设备，Open 可能因权限被拒返回 ErrPermissionDenied
type Device interface {
	Open(ctx context.Context) (Capture, error)
}

// StreamDevice 由客户端推送音频分片的设备
type StreamDevice struct {
	maxBytes int64
	bufSize  int

	mu      sync.Mutex
	current *streamCapture
}

// NewStreamDevice maxBytes <= 0 表示不限制大小
func NewStreamDevice(maxBytes int64) *StreamDevice {
	return &StreamDevice{maxBytes: maxBytes, bufSize: 64}
}

func (d *StreamDevice) Open(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &streamCapture{
		ch:       make(chan []byte, d.bufSize),
		maxBytes: d.maxBytes,
	}
	c.onStop = func() {
		d.mu.Lock()
		if d.current == c {
			d.current = nil
		}
		d.mu.Unlock()
	}

	d.mu.Lock()
	old := d.current
	d.current = c
	d.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	return c, nil
}

// Push 把分片写入当前采集
func (d *StreamDevice) Push(ctx context.Context, chunk []byte) error {
	d.mu.Lock()
	c := d.current
	d.mu.Unlock()

	if c == nil {
		return ErrNoActiveCapture
	}
	return c.push(ctx, chunk)
}

type streamCapture struct {
	mu       sync.Mutex
	ch       chan []byte
	closed   bool
	size     int64
	maxBytes int64
	onStop   func()
}

func (c *streamCapture) Chunks() <-chan []byte {
	return c.ch
}

func (c *streamCapture) push(ctx context.Context, chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCaptureClosed
	}
	if c.maxBytes > 0 && c.size+int64(len(chunk)) > c.maxBytes {
		return ErrRecordingTooBig
	}

	buf := make([]byte, len(chunk))
	copy(buf, chunk)

	select {
	case c.ch <- buf:
		c.size += int64(len(buf))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *streamCapture) Stop() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	c.mu.Unlock()

	if c.onStop != nil {
		c.onStop()
	}
	return nil
}

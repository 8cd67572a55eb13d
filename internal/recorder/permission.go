package recorder

import (
	"errors"
	"sync"
)

// Permission 麦克风权限状态
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
)

var ErrInvalidPermission = errors.New("invalid permission state")

// ParsePermission 解析客户端上报的权限字符串
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermissionGranted, PermissionDenied, PermissionPrompt:
		return p, nil
	default:
		return "", ErrInvalidPermission
	}
}

// Probe 记录当前权限并在变化时通知订阅者
type Probe struct {
	mu     sync.Mutex
	state  Permission
	subs   map[int]chan Permission
	nextID int
}

func NewProbe(initial Permission) *Probe {
	if _, err := ParsePermission(string(initial)); err != nil {
		initial = PermissionPrompt
	}
	return &Probe{
		state: initial,
		subs:  make(map[int]chan Permission),
	}
}

// Query 返回当前权限
func (p *Probe) Query() Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Set 更新权限；状态变化时每个订阅者只保留最新值
func (p *Probe) Set(state Permission) error {
	if _, err := ParsePermission(string(state)); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == state {
		return nil
	}
	p.state = state

	for _, ch := range p.subs {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
	return nil
}

// Subscribe 订阅权限变化，返回的函数用于取消订阅并关闭通道
func (p *Probe) Subscribe() (<-chan Permission, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	ch := make(chan Permission, 1)
	p.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

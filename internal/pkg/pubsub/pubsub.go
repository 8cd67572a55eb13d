package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelConversationProgress = "conversation_progress"

	TypeJobProgress = "job_progress"
)

// ProgressMessage 对话分析任务的进度消息
type ProgressMessage struct {
	Type           string `json:"type"`
	UserID         int64  `json:"user_id"`
	JobID          int64  `json:"job_id"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	Status         string `json:"status"`
	Step           string `json:"step"`
	Progress       int    `json:"progress"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// 进度阶段常量
const (
	StepQueued       = "queued"
	StepTranscribing = "transcribing"
	StepAnalyzing    = "analyzing"
	StepSaving       = "saving"
	StepDone         = "done"
)

// 阶段对应的进度百分比
var StepProgress = map[string]int{
	StepQueued:       5,
	StepTranscribing: 25,
	StepAnalyzing:    60,
	StepSaving:       85,
	StepDone:         100,
}

// 阶段对应的消息
var StepMessages = map[string]string{
	StepQueued:       "任务已排队",
	StepTranscribing: "正在转写录音",
	StepAnalyzing:    "正在分析对话",
	StepSaving:       "正在保存结果",
	StepDone:         "分析完成",
}

// fill 按阶段补全类型、进度与提示
func (m *ProgressMessage) fill() {
	m.Type = TypeJobProgress
	if m.Progress == 0 && m.Step != "" {
		m.Progress = StepProgress[m.Step]
	}
	if m.Message == "" && m.Step != "" {
		m.Message = StepMessages[m.Step]
	}
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.fill()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelConversationProgress, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 阻塞订阅进度消息，直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	sub := s.client.Subscribe(ctx, ChannelConversationProgress)
	defer sub.Close()

	// 等待订阅确认，保证返回前不会丢消息
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}

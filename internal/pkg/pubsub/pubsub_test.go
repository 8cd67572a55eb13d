package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestStepProgress(t *testing.T) {
	steps := []string{StepQueued, StepTranscribing, StepAnalyzing, StepSaving, StepDone}

	for i, step := range steps {
		progress, ok := StepProgress[step]
		assert.True(t, ok, "Step %s should have progress value", step)
		assert.NotEmpty(t, StepMessages[step], "Step %s should have message", step)
		if i > 0 {
			assert.Less(t, StepProgress[steps[i-1]], progress)
		}
	}
	assert.Equal(t, 100, StepProgress[StepDone])
}

func TestProgressMessage_Fill(t *testing.T) {
	msg := &ProgressMessage{UserID: 1, Step: StepTranscribing}
	msg.fill()

	assert.Equal(t, TypeJobProgress, msg.Type)
	assert.Equal(t, 25, msg.Progress)
	assert.Equal(t, StepMessages[StepTranscribing], msg.Message)

	custom := &ProgressMessage{Step: StepAnalyzing, Progress: 70, Message: "自定义"}
	custom.fill()
	assert.Equal(t, 70, custom.Progress)
	assert.Equal(t, "自定义", custom.Message)
}

func TestProgressMessage_OmitEmpty(t *testing.T) {
	data, err := json.Marshal(&ProgressMessage{UserID: 1, Status: "processing"})
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Contains(t, raw, "user_id")
	assert.Contains(t, raw, "job_id")
	assert.NotContains(t, raw, "message")
	assert.NotContains(t, raw, "error")
	assert.NotContains(t, raw, "conversation_id")
}

func TestPublisherSubscriber(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	publisher := NewPublisher(client)
	subscriber := NewSubscriber(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *ProgressMessage, 1)
	go subscriber.Subscribe(ctx, func(msg *ProgressMessage) {
		received <- msg
	})

	// 等待订阅建立
	require.Eventually(t, func() bool {
		n, _ := client.PubSubNumSub(ctx, ChannelConversationProgress).Result()
		return n[ChannelConversationProgress] > 0
	}, 2*time.Second, 10*time.Millisecond)

	err := publisher.PublishProgress(ctx, &ProgressMessage{
		UserID: 123,
		JobID:  789,
		Status: "processing",
		Step:   StepAnalyzing,
	})
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, int64(123), got.UserID)
		assert.Equal(t, int64(789), got.JobID)
		assert.Equal(t, TypeJobProgress, got.Type)
		assert.Equal(t, 60, got.Progress)
		assert.NotEmpty(t, got.Message)
	case <-ctx.Done():
		t.Fatal("Timeout waiting for message")
	}
}

package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/model"
)

var seq int64

func next() int64 {
	return atomic.AddInt64(&seq, 1)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := next()
	email := fmt.Sprintf("test_%d@example.com", n)
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Username:      fmt.Sprintf("testuser_%d", n),
		Email:         &email,
		PasswordHash:  &passwordHash,
		EmailVerified: true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithPassword 设置密码哈希
func WithPassword(hash string) func(*model.User) {
	return func(u *model.User) {
		u.PasswordHash = &hash
	}
}

// WithUnverifiedEmail 邮箱未验证
func WithUnverifiedEmail(code string, expiresAt time.Time) func(*model.User) {
	return func(u *model.User) {
		u.EmailVerified = false
		u.VerificationCode = &code
		u.VerificationExpiresAt = &expiresAt
	}
}

// WithQuotaUsed 设置已使用配额，重置时间在一天后
func WithQuotaUsed(used int) func(*model.User) {
	return func(u *model.User) {
		resetAt := time.Now().Add(24 * time.Hour)
		u.QuotaUsedToday = used
		u.QuotaResetAt = &resetAt
	}
}

// WithQuotaResetAt 设置配额重置时间
func WithQuotaResetAt(at time.Time) func(*model.User) {
	return func(u *model.User) {
		u.QuotaResetAt = &at
	}
}

// TestSubscription 为用户创建订阅
func TestSubscription(t *testing.T, db *gorm.DB, userID int64, planID string, opts ...func(*model.UserSubscription)) *model.UserSubscription {
	t.Helper()

	sub := &model.UserSubscription{
		UserID:           userID,
		PlanID:           planID,
		Status:           model.SubscriptionStatusActive,
		Interval:         model.IntervalMonthly,
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour),
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// WithCancelAtPeriodEnd 进入宽限期
func WithCancelAtPeriodEnd(periodEnd time.Time) func(*model.UserSubscription) {
	return func(s *model.UserSubscription) {
		s.CancelAtPeriodEnd = true
		s.CurrentPeriodEnd = periodEnd
	}
}

// WithSubscriptionStatus 设置订阅状态
func WithSubscriptionStatus(status string) func(*model.UserSubscription) {
	return func(s *model.UserSubscription) {
		s.Status = status
	}
}

// TestCheckIn 创建打卡记录
func TestCheckIn(t *testing.T, db *gorm.DB, userID int64, date string, mood int) *model.CheckIn {
	t.Helper()

	checkIn := &model.CheckIn{
		UserID:      userID,
		CheckInDate: date,
		Mood:        mood,
		Highlight:   "Walked together",
		Challenge:   "Busy schedule",
		Gratitude:   "Morning coffee",
	}

	if err := db.Create(checkIn).Error; err != nil {
		t.Fatalf("Failed to create test check-in: %v", err)
	}

	return checkIn
}

// TestConversation 创建对话分析记录
func TestConversation(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Conversation)) *model.Conversation {
	t.Helper()

	conv := &model.Conversation{
		UserID:       userID,
		RecordingID:  time.Now().UnixMilli(),
		Title:        fmt.Sprintf("Conversation %d", next()),
		Duration:     65,
		Transcript:   "Alex: Hi\nJordan: Hello",
		Segments:     `[{"speaker":"Alex","content":"Hi"},{"speaker":"Jordan","content":"Hello"}]`,
		AnalysisText: "You both greeted each other warmly.",
		Model:        "gpt-4o-mini",
	}

	for _, opt := range opts {
		opt(conv)
	}

	if err := db.Create(conv).Error; err != nil {
		t.Fatalf("Failed to create test conversation: %v", err)
	}

	return conv
}

// WithCreatedAt 设置创建时间
func WithCreatedAt(at time.Time) func(*model.Conversation) {
	return func(c *model.Conversation) {
		c.CreatedAt = at
	}
}

// TestJob 创建分析任务
func TestJob(t *testing.T, db *gorm.DB, userID int64, status string) *model.ConversationJob {
	t.Helper()

	job := &model.ConversationJob{
		UserID:      userID,
		RecordingID: time.Now().UnixMilli(),
		Status:      status,
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

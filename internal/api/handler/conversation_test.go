package handler

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/coach_go_server/config"
	"github.com/qs3c/coach_go_server/internal/model"
	"github.com/qs3c/coach_go_server/internal/pkg/inflight"
	"github.com/qs3c/coach_go_server/internal/pkg/llm"
	"github.com/qs3c/coach_go_server/internal/pkg/metrics"
	"github.com/qs3c/coach_go_server/internal/pkg/queue"
	"github.com/qs3c/coach_go_server/internal/pkg/response"
	"github.com/qs3c/coach_go_server/internal/recorder"
	"github.com/qs3c/coach_go_server/internal/repository"
	"github.com/qs3c/coach_go_server/internal/service"
	"github.com/qs3c/coach_go_server/internal/testutil"
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return "Sam: How was work?\nRiley: Long, but better now.", nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(context.Context, string, string) (*llm.Result, error) {
	return &llm.Result{Text: "You checked in with each other.", Model: "gpt-4o-mini"}, nil
}

type stubQueue struct {
	msgs []*queue.JobMessage
}

func (q *stubQueue) Push(_ context.Context, msg *queue.JobMessage) error {
	q.msgs = append(q.msgs, msg)
	return nil
}

type conversationHandlerFixture struct {
	router     *gin.Engine
	ctx        *testContext
	recordings *repository.MemoryRecordingStore
	queue      *stubQueue
	user       *model.User
}

func setupConversationHandler(t *testing.T, jobQueue service.JobQueue, userOpts ...func(*model.User)) (*conversationHandlerFixture, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	userRepo := repository.NewUserRepository(db)
	subs := service.NewSubscriptionService(repository.NewSubscriptionRepository(db), nil)
	recordings := repository.NewMemoryRecordingStore(time.Minute)

	svc := service.NewConversationService(
		repository.NewConversationRepository(db),
		repository.NewJobRepository(db),
		recordings,
		service.NewSettingsService(repository.NewSettingsRepository(db)),
		service.NewQuotaService(userRepo, subs, time.UTC),
		inflight.NewMemoryGuard(time.Minute),
		stubTranscriber{},
		stubAnalyzer{},
		jobQueue,
		metrics.New(),
		&config.Config{App: config.AppConfig{Timezone: "UTC", DemoMode: true}},
		nil,
	)
	handler := NewConversationHandler(svc, nil)
	user := testutil.TestUser(t, db, userOpts...)

	router := gin.New()
	router.Use(mockAuth(user.ID))
	router.POST("/recordings/:id/analyze", handler.Analyze)
	router.POST("/recordings/:id/jobs", handler.Submit)
	router.POST("/conversations/demo", handler.Demo)
	router.GET("/conversations", handler.List)
	router.GET("/conversations/:id", handler.Get)
	router.DELETE("/conversations/:id", handler.Delete)
	router.GET("/jobs/:id", handler.GetJob)

	f := &conversationHandlerFixture{
		router:     router,
		ctx:        &testContext{DB: db},
		recordings: recordings,
		user:       user,
	}
	if q, ok := jobQueue.(*stubQueue); ok {
		f.queue = q
	}

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return f, cleanup
}

func (f *conversationHandlerFixture) saveRecording(t *testing.T, id int64) {
	t.Helper()
	rec := &recorder.Recording{
		ID:        id,
		Duration:  65,
		AudioData: []byte("fake-audio"),
		MimeType:  "audio/webm",
		CreatedAt: time.Date(2026, 6, 1, 19, 30, 0, 0, time.UTC),
	}
	require.NoError(t, f.recordings.Save(context.Background(), f.user.ID, rec))
}

func TestConversationHandler_Analyze_Success(t *testing.T) {
	f, cleanup := setupConversationHandler(t, nil)
	defer cleanup()

	f.saveRecording(t, 1001)

	resp := parseResponse(t, performRequest(f.router, "POST", "/recordings/1001/analyze", nil))

	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, "Conversation on Jun 1, 2026 at 19:30", data["title"])
	assert.Equal(t, "01:05", data["duration_text"])
	assert.Equal(t, false, data["used_fallback"])
	analysis := data["analysis"].(map[string]interface{})
	assert.Equal(t, "You checked in with each other.", analysis["text"])
	assert.Equal(t, false, analysis["failed"])
	_, hasSynthetic := data["synthetic_metrics"]
	assert.False(t, hasSynthetic)
}

func TestConversationHandler_Analyze_Errors(t *testing.T) {
	f, cleanup := setupConversationHandler(t, nil)
	defer cleanup()

	resp := parseResponse(t, performRequest(f.router, "POST", "/recordings/9999/analyze", nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)

	resp = parseResponse(t, performRequest(f.router, "POST", "/recordings/abc/analyze", nil))
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestConversationHandler_Analyze_QuotaExceeded(t *testing.T) {
	f, cleanup := setupConversationHandler(t, nil, testutil.WithQuotaUsed(3))
	defer cleanup()

	f.saveRecording(t, 1002)

	resp := parseResponse(t, performRequest(f.router, "POST", "/recordings/1002/analyze", nil))
	assert.Equal(t, response.CodeQuotaExceeded, resp.Code)
}

func TestConversationHandler_Demo(t *testing.T) {
	f, cleanup := setupConversationHandler(t, nil)
	defer cleanup()

	resp := parseResponse(t, performRequest(f.router, "POST", "/conversations/demo", nil))

	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, true, data["used_fallback"])
	assert.Equal(t, service.ReasonDemo, data["fallback_reason"])
	synthetic := data["synthetic_metrics"].(map[string]interface{})
	assert.Equal(t, true, synthetic["synthetic"])
}

func TestConversationHandler_ListGetDelete(t *testing.T) {
	f, cleanup := setupConversationHandler(t, nil)
	defer cleanup()

	conv := testutil.TestConversation(t, f.ctx.DB, f.user.ID)
	other := testutil.TestUser(t, f.ctx.DB)
	foreign := testutil.TestConversation(t, f.ctx.DB, other.ID)

	resp := parseResponse(t, performRequest(f.router, "GET", "/conversations", nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	page := dataMap(t, resp)
	assert.Equal(t, float64(1), page["total"])

	path := "/conversations/" + strconv.FormatInt(conv.ID, 10)
	resp = parseResponse(t, performRequest(f.router, "GET", path, nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, conv.Title, data["title"])
	assert.Len(t, data["segments"], 2)

	// 他人的对话不可见
	resp = parseResponse(t, performRequest(f.router, "GET", "/conversations/"+strconv.FormatInt(foreign.ID, 10), nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
	resp = parseResponse(t, performRequest(f.router, "DELETE", "/conversations/"+strconv.FormatInt(foreign.ID, 10), nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)

	resp = parseResponse(t, performRequest(f.router, "DELETE", path, nil))
	assert.Equal(t, response.CodeSuccess, resp.Code)
	resp = parseResponse(t, performRequest(f.router, "GET", path, nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestConversationHandler_SubmitAndGetJob(t *testing.T) {
	f, cleanup := setupConversationHandler(t, &stubQueue{})
	defer cleanup()

	f.saveRecording(t, 2001)

	resp := parseResponse(t, performRequest(f.router, "POST", "/recordings/2001/jobs", nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	jobID := int64(dataMap(t, resp)["job_id"].(float64))

	require.Len(t, f.queue.msgs, 1)
	assert.Equal(t, jobID, f.queue.msgs[0].JobID)
	assert.Equal(t, int64(2001), f.queue.msgs[0].RecordingID)

	resp = parseResponse(t, performRequest(f.router, "GET", "/jobs/"+strconv.FormatInt(jobID, 10), nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, model.JobStatusQueued, dataMap(t, resp)["status"])

	resp = parseResponse(t, performRequest(f.router, "GET", "/jobs/424242", nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestConversationHandler_Submit_AsyncDisabled(t *testing.T) {
	f, cleanup := setupConversationHandler(t, nil)
	defer cleanup()

	f.saveRecording(t, 3001)

	resp := parseResponse(t, performRequest(f.router, "POST", "/recordings/3001/jobs", nil))
	assert.Equal(t, response.CodeStateConflict, resp.Code)
}

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/repository"
	"github.com/qs3c/coach_go_server/internal/testutil"
)

func setupCheckInService(t *testing.T, now time.Time) (*CheckInService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	service := NewCheckInService(repository.NewCheckInRepository(db), time.UTC)
	service.now = func() time.Time { return now }

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, db, cleanup
}

func validCheckIn() *dto.CreateCheckInRequest {
	return &dto.CreateCheckInRequest{
		Mood:      7,
		Highlight: "Cooked dinner together",
		Challenge: "Long work day",
		Gratitude: "A patient partner",
	}
}

func TestCheckInService_Create(t *testing.T) {
	now := time.Date(2026, 4, 2, 21, 0, 0, 0, time.UTC)
	service, db, cleanup := setupCheckInService(t, now)
	defer cleanup()

	user := testutil.TestUser(t, db)

	checkIn, err := service.Create(user.ID, validCheckIn())
	require.NoError(t, err)
	assert.Equal(t, "2026-04-02", checkIn.CheckInDate)
	assert.Nil(t, checkIn.SupportDetails)

	_, err = service.Create(user.ID, validCheckIn())
	assert.Equal(t, ErrCheckInExists, err)

	today, err := service.Today(user.ID)
	require.NoError(t, err)
	require.NotNil(t, today)
	assert.Equal(t, checkIn.ID, today.ID)
}

func TestCheckInService_Create_WithSupport(t *testing.T) {
	service, db, cleanup := setupCheckInService(t, time.Now())
	defer cleanup()

	user := testutil.TestUser(t, db)
	req := validCheckIn()
	details := " Talk about chores "
	req.NeedsSupport = true
	req.SupportDetails = &details

	checkIn, err := service.Create(user.ID, req)
	require.NoError(t, err)
	require.NotNil(t, checkIn.SupportDetails)
	assert.Equal(t, "Talk about chores", *checkIn.SupportDetails)
}

func TestCheckInService_Create_Validation(t *testing.T) {
	service, db, cleanup := setupCheckInService(t, time.Now())
	defer cleanup()

	user := testutil.TestUser(t, db)
	details := "help"

	tests := []struct {
		name   string
		mutate func(*dto.CreateCheckInRequest)
	}{
		{"mood too low", func(r *dto.CreateCheckInRequest) { r.Mood = 0 }},
		{"mood too high", func(r *dto.CreateCheckInRequest) { r.Mood = 11 }},
		{"blank highlight", func(r *dto.CreateCheckInRequest) { r.Highlight = "   " }},
		{"blank challenge", func(r *dto.CreateCheckInRequest) { r.Challenge = "" }},
		{"blank gratitude", func(r *dto.CreateCheckInRequest) { r.Gratitude = "\n" }},
		{"details without support", func(r *dto.CreateCheckInRequest) { r.SupportDetails = &details }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCheckIn()
			tt.mutate(req)
			_, err := service.Create(user.ID, req)
			assert.ErrorIs(t, err, ErrInvalidCheckIn)
		})
	}

	today, err := service.Today(user.ID)
	require.NoError(t, err)
	assert.Nil(t, today)
}

func TestCheckInService_List(t *testing.T) {
	service, db, cleanup := setupCheckInService(t, time.Now())
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestCheckIn(t, db, user.ID, "2026-03-01", 5)
	testutil.TestCheckIn(t, db, user.ID, "2026-03-03", 6)
	testutil.TestCheckIn(t, db, user.ID, "2026-03-02", 7)

	items, total, err := service.List(user.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	assert.Equal(t, "2026-03-03", items[0].CheckInDate)
	assert.Equal(t, "2026-03-02", items[1].CheckInDate)
}

func TestCheckInService_Summary(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	service, db, cleanup := setupCheckInService(t, now)
	defer cleanup()

	user := testutil.TestUser(t, db)
	// 3 月 9、8、7 连续，3 月 1-4 连续 4 天
	for _, d := range []string{"2026-03-09", "2026-03-08", "2026-03-07", "2026-03-04", "2026-03-03", "2026-03-02", "2026-03-01"} {
		testutil.TestCheckIn(t, db, user.ID, d, 6)
	}
	db.Exec("UPDATE check_ins SET needs_support = ? WHERE check_in_date = ?", true, "2026-03-08")

	summary, err := service.Summary(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), summary.Total)
	assert.Equal(t, 6.0, summary.AverageMood)
	assert.Equal(t, 3, summary.CurrentStreak)
	assert.Equal(t, 4, summary.LongestStreak)
	assert.Equal(t, int64(1), summary.SupportCount)
	assert.False(t, summary.CheckedInToday)
}

func TestCheckInService_Summary_Empty(t *testing.T) {
	service, db, cleanup := setupCheckInService(t, time.Now())
	defer cleanup()

	user := testutil.TestUser(t, db)

	summary, err := service.Summary(user.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.CurrentStreak)
	assert.Zero(t, summary.LongestStreak)
}

func TestStreaks(t *testing.T) {
	tests := []struct {
		name    string
		dates   []string
		today   string
		current int
		longest int
	}{
		{"empty", nil, "2026-01-10", 0, 0},
		{"today only", []string{"2026-01-10"}, "2026-01-10", 1, 1},
		{"through yesterday", []string{"2026-01-09", "2026-01-08"}, "2026-01-10", 2, 2},
		{"broken", []string{"2026-01-08", "2026-01-07"}, "2026-01-10", 0, 2},
		{"month boundary", []string{"2026-03-01", "2026-02-28", "2026-02-27"}, "2026-03-01", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, longest := streaks(tt.dates, tt.today)
			assert.Equal(t, tt.current, current)
			assert.Equal(t, tt.longest, longest)
		})
	}
}

package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/repository"
	"github.com/qs3c/coach_go_server/internal/subscription"
	"github.com/qs3c/coach_go_server/internal/testutil"
)

type staticPlans struct {
	mu    sync.Mutex
	plans map[int64]string
}

func (p *staticPlans) EffectivePlan(userID int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if plan, ok := p.plans[userID]; ok {
		return plan, nil
	}
	return subscription.PlanFree, nil
}

func setupQuotaService(t *testing.T) (*QuotaService, *staticPlans, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	userRepo := repository.NewUserRepository(db)
	plans := &staticPlans{plans: map[int64]string{}}

	service := NewQuotaService(userRepo, plans, time.UTC)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, plans, db, cleanup
}

func TestQuotaService_CheckQuota_HasQuota(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := NewQuotaService(repository.NewUserRepository(db), &staticPlans{}, time.UTC)
	user := testutil.TestUser(t, db, testutil.WithQuotaUsed(2))

	hasQuota, err := service.CheckQuota(user.ID)
	require.NoError(t, err)
	assert.True(t, hasQuota)
}

func TestQuotaService_CheckQuota_NoQuota(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := NewQuotaService(repository.NewUserRepository(db), &staticPlans{}, time.UTC)
	user := testutil.TestUser(t, db, testutil.WithQuotaUsed(3))

	hasQuota, err := service.CheckQuota(user.ID)
	require.NoError(t, err)
	assert.False(t, hasQuota)
}

func TestQuotaService_CheckQuota_ResetsWhenExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	service := NewQuotaService(userRepo, &staticPlans{}, time.UTC)
	user := testutil.TestUser(t, db,
		testutil.WithQuotaUsed(3),
		testutil.WithQuotaResetAt(time.Now().Add(-time.Minute)),
	)

	hasQuota, err := service.CheckQuota(user.ID)
	require.NoError(t, err)
	assert.True(t, hasQuota)

	updated, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.QuotaUsedToday)
	require.NotNil(t, updated.QuotaResetAt)
	assert.True(t, updated.QuotaResetAt.After(time.Now()))
}

func TestQuotaService_UseQuota_FreePlanLimit(t *testing.T) {
	service, _, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	for i := 0; i < 3; i++ {
		require.NoError(t, service.UseQuota(user.ID))
	}
	assert.Equal(t, ErrQuotaExceeded, service.UseQuota(user.ID))

	info, err := service.GetQuotaInfo(user.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanFree, info.Plan)
	assert.Equal(t, 3, info.DailyLimit)
	assert.Equal(t, 3, info.DailyUsed)
	assert.Equal(t, 0, info.DailyRemain)
	assert.False(t, info.Unlimited)
}

func TestQuotaService_UseQuota_UnlimitedPlan(t *testing.T) {
	service, plans, db, cleanup := setupQuotaService(t)
	defer cleanup()

	userID := testutil.TestUser(t, db).ID
	plans.plans[userID] = subscription.PlanPremium

	for i := 0; i < 10; i++ {
		require.NoError(t, service.UseQuota(userID))
	}

	info, err := service.GetQuotaInfo(userID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanPremium, info.Plan)
	assert.True(t, info.Unlimited)
	assert.Equal(t, subscription.Unlimited, info.DailyLimit)
	assert.Equal(t, subscription.Unlimited, info.DailyRemain)
	assert.Equal(t, 10, info.DailyUsed)
}

func TestQuotaService_UseQuota_Concurrent(t *testing.T) {
	service, _, db, cleanup := setupQuotaService(t)
	defer cleanup()

	userID := testutil.TestUser(t, db).ID
	// 先触发一次重置，避免并发时重复重置
	_, err := service.CheckQuota(userID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if service.UseQuota(userID) == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, granted)
}

func TestQuotaService_RefundQuota(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	service := NewQuotaService(userRepo, &staticPlans{}, time.UTC)
	user := testutil.TestUser(t, db, testutil.WithQuotaUsed(1))

	require.NoError(t, service.RefundQuota(user.ID))
	require.NoError(t, service.RefundQuota(user.ID))

	updated, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.QuotaUsedToday)
}

func TestQuotaService_ResetAllQuotas(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	service := NewQuotaService(userRepo, &staticPlans{}, time.UTC)
	service.now = func() time.Time { return time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC) }

	u1 := testutil.TestUser(t, db, testutil.WithQuotaUsed(3))
	u2 := testutil.TestUser(t, db, testutil.WithQuotaUsed(1))

	n, err := service.ResetAllQuotas()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(2))

	for _, id := range []int64{u1.ID, u2.ID} {
		updated, err := userRepo.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.QuotaUsedToday)
		require.NotNil(t, updated.QuotaResetAt)
		assert.True(t, updated.QuotaResetAt.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)))
	}
}

func TestQuotaService_GetQuotaInfo_UserNotFound(t *testing.T) {
	service, _, _, cleanup := setupQuotaService(t)
	defer cleanup()

	_, err := service.GetQuotaInfo(99999)
	assert.Equal(t, ErrUserNotFound, err)
}

package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/coach_go_server/internal/model"
	"github.com/qs3c/coach_go_server/internal/testutil"
)

func TestSubscriptionRepository_Upsert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewSubscriptionRepository(db)
	user := testutil.TestUser(t, db)
	end := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Second)

	require.NoError(t, repo.Upsert(&model.UserSubscription{
		UserID: user.ID, PlanID: "premium", Status: model.SubscriptionStatusActive,
		Interval: model.IntervalMonthly, CurrentPeriodEnd: end,
	}))
	require.NoError(t, repo.Upsert(&model.UserSubscription{
		UserID: user.ID, PlanID: "couples", Status: model.SubscriptionStatusActive,
		Interval: model.IntervalYearly, CurrentPeriodEnd: end, CancelAtPeriodEnd: true,
	}))

	var count int64
	db.Model(&model.UserSubscription{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	sub, err := repo.GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "couples", sub.PlanID)
	assert.Equal(t, model.IntervalYearly, sub.Interval)
	assert.True(t, sub.CancelAtPeriodEnd)
}

func TestSubscriptionRepository_Expiry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewSubscriptionRepository(db)
	now := time.Now()

	due := testutil.TestSubscription(t, db, testutil.TestUser(t, db).ID, "premium",
		testutil.WithCancelAtPeriodEnd(now.Add(-time.Hour)))
	testutil.TestSubscription(t, db, testutil.TestUser(t, db).ID, "premium",
		testutil.WithCancelAtPeriodEnd(now.Add(time.Hour)))
	testutil.TestSubscription(t, db, testutil.TestUser(t, db).ID, "premium")

	subs, err := repo.ListDueForExpiry(now)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, due.ID, subs[0].ID)

	ok, err := repo.MarkExpired(due.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	sub, _ := repo.GetByUserID(due.UserID)
	assert.Equal(t, model.SubscriptionStatusCanceled, sub.Status)
	assert.False(t, sub.CancelAtPeriodEnd)

	ok, err = repo.MarkExpired(due.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "already expired")
}

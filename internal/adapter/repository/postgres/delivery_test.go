package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mailflow/mailflow/internal/adapter/repository/postgres"
	"github.com/mailflow/mailflow/internal/domain/delivery"
	"github.com/mailflow/mailflow/pkg/testhelper"
)

func TestDeliveryRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	pg, err := testhelper.SetupPostgres(ctx)
	require.NoError(t, err)
	defer func() {
		if err := pg.Teardown(ctx); err != nil {
			t.Logf("failed to teardown container: %v", err)
		}
	}()

	db, err := gorm.Open(gormpostgres.Open(pg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&postgres.DeliveryLogModel{})
	require.NoError(t, err)

	repo := postgres.NewDeliveryRepository(db)

	t.Run("CreateAndFind", func(t *testing.T) {
		log := delivery.NewLog("find-1", 10, 1, "Hi", "<p>Hi</p>", 3)
		require.NoError(t, repo.Create(ctx, log))

		fetched, err := repo.FindByID(ctx, "find-1")
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusPending, fetched.Status)
		assert.Equal(t, 0, fetched.AttemptCount)
		assert.Empty(t, fetched.ErrorMessage)

		_, err = repo.FindByID(ctx, "ghost")
		assert.ErrorIs(t, err, delivery.ErrNotFound)
	})

	t.Run("BeginAttempt_ClaimsAndIncrements", func(t *testing.T) {
		log := delivery.NewLog("claim-1", 10, 1, "s", "b", 3)
		require.NoError(t, repo.Create(ctx, log))

		claimed, err := repo.BeginAttempt(ctx, "claim-1")
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, delivery.StatusProcessing, claimed.Status)
		assert.Equal(t, 1, claimed.AttemptCount)

		// A second claim while Processing still counts a fresh attempt.
		claimed, err = repo.BeginAttempt(ctx, "claim-1")
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, 2, claimed.AttemptCount)
	})

	t.Run("BeginAttempt_TerminalReturnsNil", func(t *testing.T) {
		log := delivery.NewLog("claim-2", 10, 1, "s", "b", 3)
		require.NoError(t, repo.Create(ctx, log))

		claimed, err := repo.BeginAttempt(ctx, "claim-2")
		require.NoError(t, err)
		claimed.MarkSent()
		require.NoError(t, repo.MarkSent(ctx, claimed))

		again, err := repo.BeginAttempt(ctx, "claim-2")
		require.NoError(t, err)
		assert.Nil(t, again)

		_, err = repo.BeginAttempt(ctx, "ghost")
		assert.ErrorIs(t, err, delivery.ErrNotFound)
	})

	t.Run("MarkSent_Idempotent", func(t *testing.T) {
		log := delivery.NewLog("sent-1", 10, 1, "s", "b", 3)
		require.NoError(t, repo.Create(ctx, log))

		claimed, err := repo.BeginAttempt(ctx, "sent-1")
		require.NoError(t, err)
		claimed.MarkSent()
		require.NoError(t, repo.MarkSent(ctx, claimed))

		// Duplicate completion is a no-op, not an error.
		require.NoError(t, repo.MarkSent(ctx, claimed))

		fetched, err := repo.FindByID(ctx, "sent-1")
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusSent, fetched.Status)
		assert.NotNil(t, fetched.SentAt)
		assert.Equal(t, 1, fetched.AttemptCount)
	})

	t.Run("MarkRetrying_GuardedOnAttemptCount", func(t *testing.T) {
		log := delivery.NewLog("retry-1", 10, 1, "s", "b", 3)
		require.NoError(t, repo.Create(ctx, log))

		claimed, err := repo.BeginAttempt(ctx, "retry-1")
		require.NoError(t, err)
		claimed.MarkRetrying("connection refused", time.Minute)
		require.NoError(t, repo.MarkRetrying(ctx, claimed))

		fetched, err := repo.FindByID(ctx, "retry-1")
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusRetrying, fetched.Status)
		assert.Equal(t, "attempt 1/3: connection refused", fetched.ErrorMessage)
		assert.NotNil(t, fetched.NextAttemptAt)

		// A stale copy (same status guard, outdated counter) loses.
		stale := *claimed
		stale.AttemptCount = 99
		err = repo.MarkRetrying(ctx, &stale)
		assert.Error(t, err)
	})

	t.Run("MarkFailed_Terminal", func(t *testing.T) {
		log := delivery.NewLog("fail-1", 10, 1, "s", "b", 1)
		require.NoError(t, repo.Create(ctx, log))

		claimed, err := repo.BeginAttempt(ctx, "fail-1")
		require.NoError(t, err)
		claimed.MarkFailed("smtp down")
		require.NoError(t, repo.MarkFailed(ctx, claimed))

		fetched, err := repo.FindByID(ctx, "fail-1")
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusFailed, fetched.Status)
		assert.Equal(t, "final failure after 1 attempts: smtp down", fetched.ErrorMessage)
	})

	t.Run("Reset_KeepsAttemptCount", func(t *testing.T) {
		log := delivery.NewLog("reset-1", 10, 1, "s", "b", 3)
		require.NoError(t, repo.Create(ctx, log))

		claimed, err := repo.BeginAttempt(ctx, "reset-1")
		require.NoError(t, err)
		claimed.MarkFailed("boom")
		require.NoError(t, repo.MarkFailed(ctx, claimed))

		claimed.ResetForReprocess()
		require.NoError(t, repo.Reset(ctx, claimed))

		fetched, err := repo.FindByID(ctx, "reset-1")
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusPending, fetched.Status)
		assert.Equal(t, 1, fetched.AttemptCount)
		assert.Empty(t, fetched.ErrorMessage)
	})

	t.Run("ListOverdueRetries", func(t *testing.T) {
		log := delivery.NewLog("overdue-1", 10, 1, "s", "b", 3)
		require.NoError(t, repo.Create(ctx, log))

		claimed, err := repo.BeginAttempt(ctx, "overdue-1")
		require.NoError(t, err)
		claimed.MarkRetrying("timeout", -10*time.Minute)
		require.NoError(t, repo.MarkRetrying(ctx, claimed))

		overdue, err := repo.ListOverdueRetries(ctx, time.Now().UTC(), 10)
		require.NoError(t, err)

		found := false
		for _, item := range overdue {
			if item.ID == "overdue-1" {
				found = true
			}
		}
		assert.True(t, found)

		// Nothing due before the epoch.
		none, err := repo.ListOverdueRetries(ctx, time.Unix(0, 0).UTC(), 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("CountByStatus", func(t *testing.T) {
		stats, err := repo.CountByStatus(ctx)
		require.NoError(t, err)

		assert.Positive(t, stats.Total)
		assert.Positive(t, stats.Sent)
		assert.Equal(t, stats.Total, stats.Pending+stats.Processing+stats.Sent+stats.Retrying+stats.Failed)
	})
}

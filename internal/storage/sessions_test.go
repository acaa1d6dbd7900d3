package storage

import (
	"context"
	"testing"
	"time"

	"github.com/homevault/reconcile/internal/common"
	"github.com/homevault/reconcile/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionDefaultsExpiry(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	sess := testSession("sess-1", "user-1")
	require.NoError(t, store.CreateSession(ctx, sess))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionUploading, got.Status)
	assert.WithinDuration(t, time.Now().Add(model.DefaultSessionTTL), got.ExpiresAt, time.Minute)
	assert.True(t, got.AutoCleanup)
}

func TestGetSessionNotFound(t *testing.T) {
	store := newTestStorage(t)
	_, err := store.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListSessionsByUser(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mustCreateSession(t, store, "sess-1", "user-1")
	mustCreateSession(t, store, "sess-2", "user-1")
	mustCreateSession(t, store, "sess-3", "user-2")
	require.NoError(t, store.UpdateSessionStatus(ctx, "sess-2", model.SessionUploading, model.SessionProcessing, ""))

	all, err := store.ListSessionsByUser(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	processing := model.SessionProcessing
	filtered, err := store.ListSessionsByUser(ctx, "user-1", &processing)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "sess-2", filtered[0].ID)
}

func TestUpdateSessionStatusIsConditional(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mustCreateSession(t, store, "sess-1", "user-1")

	require.NoError(t, store.UpdateSessionStatus(ctx, "sess-1", model.SessionUploading, model.SessionProcessing, ""))

	// A second writer with a stale precondition loses.
	err := store.UpdateSessionStatus(ctx, "sess-1", model.SessionUploading, model.SessionProcessing, "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	err = store.UpdateSessionStatus(ctx, "missing", model.SessionUploading, model.SessionProcessing, "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, store.UpdateSessionStatus(ctx, "sess-1", model.SessionProcessing, model.SessionFailed, "parse error"))
	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionFailed, got.Status)
	assert.Equal(t, "parse error", got.ErrorMessage)
}

func TestUpdateSessionStatistics(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mustCreateSession(t, store, "sess-1", "user-1")

	stats := model.SessionStatistics{
		TotalTransactions: 42,
		RecurringDetected: 3,
		DateRangeDays:     60,
		TotalDebits:       decimal.NewFromFloat(1234.56),
		TotalCredits:      decimal.NewFromFloat(2500),
	}
	require.NoError(t, store.UpdateSessionStatistics(ctx, "sess-1", stats))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 42, got.Statistics.TotalTransactions)
	assert.Equal(t, 3, got.Statistics.RecurringDetected)
	assert.Equal(t, 60, got.Statistics.DateRangeDays)
	assert.True(t, got.Statistics.TotalDebits.Equal(decimal.NewFromFloat(1234.56)))
	assert.True(t, got.Statistics.TotalCredits.Equal(decimal.NewFromFloat(2500)))
}

func TestSetSessionMetadata(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mustCreateSession(t, store, "sess-1", "user-1")

	period := &model.StatementPeriod{
		Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SetSessionMetadata(ctx, "sess-1", "Barclays", "****1234", period))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Barclays", got.BankName)
	assert.Equal(t, "****1234", got.AccountNumber)
	require.NotNil(t, got.StatementPeriod)
	assert.Equal(t, period.Start, got.StatementPeriod.Start.UTC())
}

func pendingSuggestion(payee string) model.RecurringPaymentSuggestion {
	return model.RecurringPaymentSuggestion{
		ID:             "sug-" + payee,
		Payee:          payee,
		Category:       "utilities",
		TransactionIDs: []string{"tx-1"},
		Amount:         decimal.NewFromFloat(-102.50),
		Frequency:      model.FrequencyMonthly,
		Confidence:     0.95,
		Status:         model.SuggestionPending,
	}
}

func TestSaveAndResolveSuggestions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mustCreateSession(t, store, "sess-1", "user-1")
	suggestions := []model.RecurringPaymentSuggestion{
		pendingSuggestion("British Gas"),
		pendingSuggestion("Netflix"),
	}
	require.NoError(t, store.SaveSuggestions(ctx, "sess-1", suggestions))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got.Suggestions, 2)

	t.Run("resolve accepted", func(t *testing.T) {
		resolved, err := store.ResolveSuggestion(ctx, "sess-1", 0, model.SuggestionAccepted)
		require.NoError(t, err)
		assert.Equal(t, model.SuggestionAccepted, resolved.Status)
		assert.Equal(t, "British Gas", resolved.Payee)
	})

	t.Run("second resolution conflicts", func(t *testing.T) {
		_, err := store.ResolveSuggestion(ctx, "sess-1", 0, model.SuggestionRejected)
		assert.ErrorIs(t, err, common.ErrAlreadyResolved)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := store.ResolveSuggestion(ctx, "sess-1", 5, model.SuggestionAccepted)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("cannot resolve to pending", func(t *testing.T) {
		_, err := store.ResolveSuggestion(ctx, "sess-1", 1, model.SuggestionPending)
		assert.Error(t, err)
	})

	t.Run("reopen returns to pending", func(t *testing.T) {
		require.NoError(t, store.ReopenSuggestion(ctx, "sess-1", 0))
		got, err := store.GetSession(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, model.SuggestionPending, got.Suggestions[0].Status)
	})

	t.Run("save on missing session", func(t *testing.T) {
		err := store.SaveSuggestions(ctx, "missing", suggestions)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestExpireStaleSkipsProcessing(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	stale := testSession("sess-stale", "user-1")
	stale.ExpiresAt = past
	require.NoError(t, store.CreateSession(ctx, stale))

	busy := testSession("sess-busy", "user-1")
	busy.ExpiresAt = past
	require.NoError(t, store.CreateSession(ctx, busy))
	require.NoError(t, store.UpdateSessionStatus(ctx, "sess-busy", model.SessionUploading, model.SessionProcessing, ""))

	fresh := mustCreateSession(t, store, "sess-fresh", "user-1")

	expired, err := store.ExpireStale(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := store.GetSession(ctx, "sess-stale")
	require.NoError(t, err)
	assert.Equal(t, model.SessionExpired, got.Status)

	got, err = store.GetSession(ctx, "sess-busy")
	require.NoError(t, err)
	assert.Equal(t, model.SessionProcessing, got.Status, "a processing session is never reclaimed")

	got, err = store.GetSession(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionUploading, got.Status)
}

func TestDeleteExpiredCascades(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	old := testSession("sess-old", "user-1")
	old.ExpiresAt = past
	require.NoError(t, store.CreateSession(ctx, old))

	txn := testTransaction("tx-1", "user-1", "sess-old", "BRITISH GAS", -102.50, time.Now().UTC())
	_, _, err := store.InsertTransaction(ctx, txn)
	require.NoError(t, err)

	require.NoError(t, store.UpdateSessionStatus(ctx, "sess-old", model.SessionUploading, model.SessionProcessing, ""))
	require.NoError(t, store.UpdateSessionStatus(ctx, "sess-old", model.SessionProcessing, model.SessionCompleted, ""))

	deleted, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetSession(ctx, "sess-old")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.GetTransactionByID(ctx, "tx-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

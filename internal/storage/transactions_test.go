package storage

import (
	"context"
	"testing"
	"time"

	"github.com/homevault/reconcile/internal/common"
	"github.com/homevault/reconcile/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertTransactionDeduplicates(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mustCreateSession(t, store, "sess-1", "user-1")
	mustCreateSession(t, store, "sess-2", "user-1")

	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)

	first := testTransaction("tx-1", "user-1", "sess-1", "BRITISH GAS", -102.50, jan)
	stored, inserted, err := store.InsertTransaction(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "tx-1", stored.ID)

	// Same user, amount and description on a later date is the same
	// transaction, even from another session.
	dup := testTransaction("tx-2", "user-1", "sess-2", "british  gas", -102.50, feb)
	stored, inserted, err = store.InsertTransaction(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "tx-1", stored.ID, "duplicate insert must surface the canonical row")

	// The duplicate still appears in the second session's view.
	view, err := store.ListTransactionsBySession(ctx, "sess-2")
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, "tx-1", view[0].ID)

	// Another user's identical line is a distinct transaction.
	other := testTransaction("tx-3", "user-2", "sess-1", "BRITISH GAS", -102.50, jan)
	_, inserted, err = store.InsertTransaction(ctx, other)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestInsertTransactionValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*model.Transaction)
	}{
		{"missing ID", func(txn *model.Transaction) { txn.ID = "" }},
		{"missing user", func(txn *model.Transaction) { txn.UserID = "" }},
		{"missing session", func(txn *model.Transaction) { txn.SessionID = "" }},
		{"missing date", func(txn *model.Transaction) { txn.Date = time.Time{} }},
		{"missing description", func(txn *model.Transaction) { txn.Description = "   " }},
		{"bad status", func(txn *model.Transaction) { txn.Status = "archived" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := testTransaction("tx-v", "user-1", "sess-1", "TEST", -5, time.Now())
			tt.mutate(txn)
			_, _, err := store.InsertTransaction(ctx, txn)
			assert.Error(t, err)
		})
	}
}

func TestGetTransactionByHash(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mustCreateSession(t, store, "sess-1", "user-1")
	txn := testTransaction("tx-1", "user-1", "sess-1", "NETFLIX.COM", -15.99, time.Now().UTC())
	_, _, err := store.InsertTransaction(ctx, txn)
	require.NoError(t, err)

	found, err := store.GetTransactionByHash(ctx, "user-1", txn.Hash)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", found.ID)

	_, err = store.GetTransactionByHash(ctx, "user-2", txn.Hash)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListTransactionsByUserStatus(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mustCreateSession(t, store, "sess-1", "user-1")
	now := time.Now().UTC()

	a := testTransaction("tx-a", "user-1", "sess-1", "NETFLIX.COM", -15.99, now)
	b := testTransaction("tx-b", "user-1", "sess-1", "SPOTIFY", -11.99, now)
	for _, txn := range []*model.Transaction{a, b} {
		_, _, err := store.InsertTransaction(ctx, txn)
		require.NoError(t, err)
	}
	require.NoError(t, store.IgnoreTransaction(ctx, "tx-b", "one-off", now))

	pending, err := store.ListTransactionsByUserStatus(ctx, "user-1", model.TransactionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "tx-a", pending[0].ID)

	ignored, err := store.ListTransactionsByUserStatus(ctx, "user-1", model.TransactionIgnored)
	require.NoError(t, err)
	require.Len(t, ignored, 1)
	assert.Equal(t, "tx-b", ignored[0].ID)
}

func TestListTransactionsByUserDateRange(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mustCreateSession(t, store, "sess-1", "user-1")
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	_, _, err := store.InsertTransaction(ctx, testTransaction("tx-jan", "user-1", "sess-1", "RENT", -950, jan))
	require.NoError(t, err)
	_, _, err = store.InsertTransaction(ctx, testTransaction("tx-mar", "user-1", "sess-1", "RENT MARCH", -950, mar))
	require.NoError(t, err)

	got, err := store.ListTransactionsByUserDateRange(ctx, "user-1",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tx-jan", got[0].ID)

	_, err = store.ListTransactionsByUserDateRange(ctx, "user-1", mar, jan)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestTransactionLifecycleTransitions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mustCreateSession(t, store, "sess-1", "user-1")
	txn := testTransaction("tx-1", "user-1", "sess-1", "PUREGYM", -24.99, now)
	_, _, err := store.InsertTransaction(ctx, txn)
	require.NoError(t, err)

	t.Run("ignore then undo", func(t *testing.T) {
		require.NoError(t, store.IgnoreTransaction(ctx, "tx-1", "cancelled membership", now))

		got, err := store.GetTransactionByID(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, model.TransactionIgnored, got.Status)
		assert.Equal(t, "cancelled membership", got.IgnoredReason)
		require.NotNil(t, got.IgnoredAt)

		require.NoError(t, store.UndoIgnore(ctx, "tx-1"))
		got, err = store.GetTransactionByID(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, model.TransactionPending, got.Status)
		assert.Empty(t, got.IgnoredReason)
		assert.Nil(t, got.IgnoredAt)
	})

	t.Run("undo requires ignored", func(t *testing.T) {
		assert.ErrorIs(t, store.UndoIgnore(ctx, "tx-1"), common.ErrInvalidTransition)
	})

	t.Run("record created is terminal", func(t *testing.T) {
		require.NoError(t, store.MarkRecordCreated(ctx, "tx-1", "record-1", "finance"))

		got, err := store.GetTransactionByID(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, model.TransactionRecordCreated, got.Status)
		assert.True(t, got.RecordCreated)
		assert.Equal(t, "record-1", got.CreatedRecordID)
		assert.Equal(t, "finance", got.CreatedRecordDomain)

		assert.ErrorIs(t, store.MarkRecordCreated(ctx, "tx-1", "record-2", "finance"), common.ErrInvalidTransition)
		assert.ErrorIs(t, store.IgnoreTransaction(ctx, "tx-1", "late", now), common.ErrInvalidTransition)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		assert.ErrorIs(t, store.UndoIgnore(ctx, "tx-missing"), common.ErrNotFound)
	})
}

func TestApplyPatternMatch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mustCreateSession(t, store, "sess-1", "user-1")
	txn := testTransaction("tx-1", "user-1", "sess-1", "BRITISH GAS", -102.50, time.Now().UTC())
	_, _, err := store.InsertTransaction(ctx, txn)
	require.NoError(t, err)

	require.NoError(t, store.ApplyPatternMatch(ctx, "tx-1", "utilities.british-gas", 1.0))

	got, err := store.GetTransactionByID(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, got.PatternMatched)
	assert.Equal(t, "utilities.british-gas", got.PatternID)
	assert.InDelta(t, 1.0, got.PatternConfidence, 0.0001)

	assert.Error(t, store.ApplyPatternMatch(ctx, "tx-1", "rule", 1.5))
	assert.ErrorIs(t, store.ApplyPatternMatch(ctx, "tx-missing", "rule", 0.9), common.ErrNotFound)
}

package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/homevault/reconcile/internal/model"
	"github.com/homevault/reconcile/internal/statement"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore deduplicates on (user, hash) like the SQLite layer does.
type memStore struct {
	byHash map[string]*model.Transaction
}

func newMemStore() *memStore {
	return &memStore{byHash: make(map[string]*model.Transaction)}
}

func (m *memStore) InsertTransaction(_ context.Context, txn *model.Transaction) (*model.Transaction, bool, error) {
	key := txn.UserID + "|" + txn.Hash
	if existing, ok := m.byHash[key]; ok {
		return existing, false, nil
	}
	stored := *txn
	m.byHash[key] = &stored
	return &stored, true, nil
}

func line(description string, amount float64, date time.Time) statement.ParsedLine {
	return statement.ParsedLine{
		Date:        date,
		Description: description,
		Amount:      decimal.NewFromFloat(amount),
	}
}

func TestIngestBatch(t *testing.T) {
	ingestor := NewIngestor(newMemStore())
	ctx := context.Background()
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	lines := []statement.ParsedLine{
		line("BRITISH GAS", -102.50, jan),
		line("SALARY ACME LTD", 2500, jan.AddDate(0, 0, 10)),
		line("NETFLIX.COM", -15.99, jan.AddDate(0, 0, 20)),
	}

	result, err := ingestor.IngestBatch(ctx, "user-1", "sess-1", lines)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Imported)
	assert.Zero(t, result.Duplicates)
	assert.Empty(t, result.Failures)
	assert.Len(t, result.Transactions, 3)

	assert.Equal(t, 3, result.Statistics.TotalTransactions)
	assert.True(t, result.Statistics.TotalDebits.Equal(decimal.NewFromFloat(118.49)))
	assert.True(t, result.Statistics.TotalCredits.Equal(decimal.NewFromFloat(2500)))
	assert.Equal(t, 20, result.Statistics.DateRangeDays)

	for _, txn := range result.Transactions {
		assert.NotEmpty(t, txn.ID)
		assert.NotEmpty(t, txn.Hash)
		assert.Equal(t, model.TransactionPending, txn.Status)
		assert.Equal(t, "user-1", txn.UserID)
	}
}

func TestIngestBatchPerLineFailures(t *testing.T) {
	ingestor := NewIngestor(newMemStore())
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	lines := []statement.ParsedLine{
		line("BRITISH GAS", -102.50, jan),
		line("", -10, jan),
		line("ZERO AMOUNT", 0, jan),
		{Description: "NO DATE", Amount: decimal.NewFromInt(-5)},
		line("NETFLIX.COM", -15.99, jan.AddDate(0, 0, 1)),
	}

	result, err := ingestor.IngestBatch(context.Background(), "user-1", "sess-1", lines)
	require.NoError(t, err, "a bad line never aborts the batch")

	assert.Equal(t, 2, result.Imported)
	require.Len(t, result.Failures, 3)
	assert.Equal(t, 2, result.Failures[0].Line)
	assert.Contains(t, result.Failures[0].Reason, "description")
	assert.Equal(t, 3, result.Failures[1].Line)
	assert.Contains(t, result.Failures[1].Reason, "amount")
	assert.Equal(t, 4, result.Failures[2].Line)
	assert.Contains(t, result.Failures[2].Reason, "date")
}

func TestIngestBatchReimportIsIdempotent(t *testing.T) {
	store := newMemStore()
	ingestor := NewIngestor(store)
	ctx := context.Background()
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	lines := []statement.ParsedLine{
		line("BRITISH GAS", -102.50, jan),
		line("NETFLIX.COM", -15.99, jan.AddDate(0, 0, 5)),
	}

	first, err := ingestor.IngestBatch(ctx, "user-1", "sess-1", lines)
	require.NoError(t, err)
	require.Equal(t, 2, first.Imported)

	// Uploading the same statement again stores nothing new but still
	// surfaces every line.
	second, err := ingestor.IngestBatch(ctx, "user-1", "sess-2", lines)
	require.NoError(t, err)
	assert.Zero(t, second.Imported)
	assert.Equal(t, 2, second.Duplicates)
	assert.Len(t, second.Transactions, 2)
	assert.Zero(t, second.Statistics.TotalTransactions, "duplicates do not count toward totals")
	assert.True(t, second.Statistics.TotalDebits.IsZero())
}

func TestIngestBatchDuplicateWithinBatch(t *testing.T) {
	ingestor := NewIngestor(newMemStore())
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	// Same amount and description on different dates collapse to one row.
	lines := []statement.ParsedLine{
		line("COUNCIL TAX", -180, jan),
		line("COUNCIL TAX", -180, jan.AddDate(0, 1, 0)),
	}

	result, err := ingestor.IngestBatch(context.Background(), "user-1", "sess-1", lines)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, result.Transactions[0].ID, result.Transactions[1].ID)
}

func TestIngestBatchRequiresIdentifiers(t *testing.T) {
	ingestor := NewIngestor(newMemStore())
	ctx := context.Background()

	_, err := ingestor.IngestBatch(ctx, "", "sess-1", nil)
	assert.Error(t, err)
	_, err = ingestor.IngestBatch(ctx, "user-1", "", nil)
	assert.Error(t, err)
}

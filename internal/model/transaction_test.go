package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases",
			input: "BRITISH GAS",
			want:  "british gas",
		},
		{
			name:  "collapses internal whitespace",
			input: "British   Gas\t Direct  Debit",
			want:  "british gas direct debit",
		},
		{
			name:  "trims leading and trailing space",
			input: "  netflix.com  ",
			want:  "netflix.com",
		},
		{
			name:  "empty stays empty",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDescription(tt.input))
		})
	}
}

func TestFingerprint(t *testing.T) {
	amount := decimal.NewFromFloat(-102.50)

	t.Run("deterministic", func(t *testing.T) {
		a := Fingerprint("user-1", amount, "BRITISH GAS")
		b := Fingerprint("user-1", amount, "BRITISH GAS")
		assert.Equal(t, a, b)
	})

	t.Run("date plays no part", func(t *testing.T) {
		jan := Transaction{UserID: "user-1", Amount: amount, Description: "BRITISH GAS", Date: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)}
		feb := Transaction{UserID: "user-1", Amount: amount, Description: "BRITISH GAS", Date: time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)}
		assert.Equal(t, jan.GenerateHash(), feb.GenerateHash())
	})

	t.Run("equivalent descriptions collide", func(t *testing.T) {
		a := Fingerprint("user-1", amount, "British  Gas")
		b := Fingerprint("user-1", amount, "BRITISH GAS")
		assert.Equal(t, a, b)
	})

	t.Run("user scoped", func(t *testing.T) {
		a := Fingerprint("user-1", amount, "BRITISH GAS")
		b := Fingerprint("user-2", amount, "BRITISH GAS")
		assert.NotEqual(t, a, b)
	})

	t.Run("amount sensitive", func(t *testing.T) {
		a := Fingerprint("user-1", decimal.NewFromFloat(-102.50), "BRITISH GAS")
		b := Fingerprint("user-1", decimal.NewFromFloat(-102.51), "BRITISH GAS")
		assert.NotEqual(t, a, b)
	})

	t.Run("description sensitive", func(t *testing.T) {
		a := Fingerprint("user-1", amount, "BRITISH GAS")
		b := Fingerprint("user-1", amount, "EDF ENERGY")
		assert.NotEqual(t, a, b)
	})
}

func TestTransactionStatusValidate(t *testing.T) {
	for _, status := range []TransactionStatus{TransactionPending, TransactionRecordCreated, TransactionIgnored} {
		require.NoError(t, status.Validate())
	}
	assert.Error(t, TransactionStatus("archived").Validate())
	assert.Error(t, TransactionStatus("").Validate())
}

func TestIsDebit(t *testing.T) {
	debit := Transaction{Amount: decimal.NewFromFloat(-9.99)}
	credit := Transaction{Amount: decimal.NewFromFloat(1500)}
	assert.True(t, debit.IsDebit())
	assert.False(t, credit.IsDebit())
}

// Package model defines the core data structures for the reconciliation engine.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus tracks where a transaction sits in its lifecycle.
type TransactionStatus string

// Transaction status values.
const (
	TransactionPending       TransactionStatus = "pending"
	TransactionRecordCreated TransactionStatus = "record_created"
	TransactionIgnored       TransactionStatus = "ignored"
)

// Validate reports whether the status is a known value.
func (s TransactionStatus) Validate() error {
	switch s {
	case TransactionPending, TransactionRecordCreated, TransactionIgnored:
		return nil
	}
	return fmt.Errorf("invalid transaction status: %q", string(s))
}

// Transaction represents one canonical statement line for a user.
// The same real-world transaction appearing on multiple uploads maps to a
// single row via Hash.
type Transaction struct {
	Date                time.Time
	IgnoredAt           *time.Time
	ID                  string
	UserID              string
	SessionID           string
	Description         string
	Reference           string
	OriginalText        string
	Hash                string
	Status              TransactionStatus
	CreatedRecordID     string
	CreatedRecordDomain string
	IgnoredReason       string
	PatternID           string
	Amount              decimal.Decimal
	Balance             *decimal.Decimal
	PatternConfidence   float64
	RecordCreated       bool
	PatternMatched      bool
}

// IsDebit reports whether the transaction is money out.
func (t *Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// NormalizeDescription lowercases a statement description and collapses
// internal whitespace so equivalent lines fingerprint identically.
func NormalizeDescription(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}

// Fingerprint creates the dedup hash for a transaction. The date is
// deliberately excluded: a recurring bill with identical amount and
// description collapses to one stored row per user.
func Fingerprint(userID string, amount decimal.Decimal, description string) string {
	data := fmt.Sprintf("%s|%s|%s",
		userID,
		amount.StringFixed(2),
		NormalizeDescription(description))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// GenerateHash populates Hash from the transaction's own fields.
func (t *Transaction) GenerateHash() string {
	return Fingerprint(t.UserID, t.Amount, t.Description)
}

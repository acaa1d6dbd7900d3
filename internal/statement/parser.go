// Package statement defines the contract with the upstream statement parser
// and ships adapters for pre-parsed statement formats.
package statement

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// ParsedLine is one ordered transaction line produced by a statement parser.
// Amounts are signed: negative means debit.
type ParsedLine struct {
	Date         time.Time
	Description  string
	Reference    string
	OriginalText string
	Amount       decimal.Decimal
	Balance      *decimal.Decimal
}

// Statement is the parser's full output for one uploaded file, including
// detected metadata when available.
type Statement struct {
	PeriodStart   time.Time
	PeriodEnd     time.Time
	BankName      string
	AccountNumber string
	Lines         []ParsedLine
}

// Parser converts an uploaded statement file into ordered transaction lines.
// Implementations consume already-structured data; layout-level extraction
// happens upstream.
type Parser interface {
	Parse(ctx context.Context, reader io.Reader) (*Statement, error)
}

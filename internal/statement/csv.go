package statement

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CSVParser implements Parser for pre-parsed CSV statement exports. The file
// must carry a header row naming at least date, description and amount
// columns; reference and balance columns are optional.
type CSVParser struct{}

// NewCSVParser creates a new CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

var csvDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02 Jan 2006",
	"2006-01-02T15:04:05Z07:00",
}

// Parse reads a CSV statement export into ordered statement lines.
func (p *CSVParser) Parse(_ context.Context, reader io.Reader) (*Statement, error) {
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{"date", "description", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV header missing %q column", required)
		}
	}

	stmt := &Statement{}
	lineNo := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", lineNo, err)
		}

		line, err := p.parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", lineNo, err)
		}
		stmt.Lines = append(stmt.Lines, line)

		if stmt.PeriodStart.IsZero() || line.Date.Before(stmt.PeriodStart) {
			stmt.PeriodStart = line.Date
		}
		if line.Date.After(stmt.PeriodEnd) {
			stmt.PeriodEnd = line.Date
		}
	}

	return stmt, nil
}

func (p *CSVParser) parseRecord(record []string, cols map[string]int) (ParsedLine, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, err := parseCSVDate(field("date"))
	if err != nil {
		return ParsedLine{}, err
	}

	amount, err := decimal.NewFromString(field("amount"))
	if err != nil {
		return ParsedLine{}, fmt.Errorf("invalid amount %q: %w", field("amount"), err)
	}

	line := ParsedLine{
		Date:         date,
		Description:  field("description"),
		Reference:    field("reference"),
		OriginalText: strings.Join(record, ","),
		Amount:       amount,
	}

	if raw := field("balance"); raw != "" {
		balance, err := decimal.NewFromString(raw)
		if err != nil {
			return ParsedLine{}, fmt.Errorf("invalid balance %q: %w", raw, err)
		}
		line.Balance = &balance
	}

	return line, nil
}

func parseCSVDate(raw string) (time.Time, error) {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

package statement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

// OFXParser implements Parser for OFX/QFX statement files.
type OFXParser struct{}

// NewOFXParser creates a new OFX parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be uppercase INFO, WARN or ERROR
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML-style files sometimes drop the closing angle bracket
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// Parse parses an OFX/QFX file into ordered statement lines.
func (p *OFXParser) Parse(_ context.Context, reader io.Reader) (*Statement, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	stmt := &Statement{}

	for _, msg := range resp.Bank {
		bankStmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		if stmt.AccountNumber == "" {
			stmt.AccountNumber = string(bankStmt.BankAcctFrom.AcctID)
		}
		p.appendTransactions(stmt, bankStmt.BankTranList)
	}

	for _, msg := range resp.CreditCard {
		ccStmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		if stmt.AccountNumber == "" {
			stmt.AccountNumber = string(ccStmt.CCAcctFrom.AcctID)
		}
		p.appendTransactions(stmt, ccStmt.BankTranList)
	}

	if org := resp.Signon.Org.String(); org != "" {
		stmt.BankName = org
	}

	slog.Info("Parsed OFX statement",
		"lines", len(stmt.Lines),
		"account", stmt.AccountNumber)

	return stmt, nil
}

func (p *OFXParser) appendTransactions(stmt *Statement, list *ofxgo.TransactionList) {
	if list == nil {
		return
	}

	if stmt.PeriodStart.IsZero() || list.DtStart.Time.Before(stmt.PeriodStart) {
		stmt.PeriodStart = list.DtStart.Time
	}
	if list.DtEnd.Time.After(stmt.PeriodEnd) {
		stmt.PeriodEnd = list.DtEnd.Time
	}

	for _, ofxTx := range list.Transactions {
		line := ParsedLine{
			Date:         ofxTx.DtPosted.Time,
			Description:  extractDescription(ofxTx),
			Reference:    string(ofxTx.FiTID),
			OriginalText: string(ofxTx.Name),
			Amount:       ratToDecimal(ofxTx.TrnAmt),
		}
		if line.Description == "" {
			continue
		}
		stmt.Lines = append(stmt.Lines, line)
	}
}

// ratToDecimal converts an OFX amount (a big.Rat) to a decimal with two
// places, preserving the sign convention (negative = debit).
func ratToDecimal(amt ofxgo.Amount) decimal.Decimal {
	f, _ := amt.Float64()
	return decimal.NewFromFloat(f).Round(2)
}

// extractDescription picks the cleanest available description field.
func extractDescription(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if name == "" && tx.Memo != "" {
		name = strings.TrimSpace(string(tx.Memo))
	}

	// Strip common card-processor prefixes
	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"CARD PAYMENT TO ",
		"DIRECT DEBIT ",
	}
	upper := strings.ToUpper(name)
	for _, prefix := range prefixes {
		if strings.HasPrefix(upper, prefix) {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}

	return name
}

package main

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/homevault/reconcile/internal/engine"
	"github.com/homevault/reconcile/internal/ingest"
	"github.com/homevault/reconcile/internal/model"
	"github.com/homevault/reconcile/internal/rules"
	"github.com/homevault/reconcile/internal/session"
	"github.com/homevault/reconcile/internal/statement"
	"github.com/homevault/reconcile/internal/suggest"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func processCmd() *cobra.Command {
	var format string
	var bankName string

	cmd := &cobra.Command{
		Use:   "process <statement-file>",
		Short: "Process a parsed bank statement",
		Long: `Process ingests a statement file, deduplicates its transactions,
classifies them against the active rule set, and attaches recurring-payment
suggestions to a new import session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args[0], format, bankName)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "statement format (ofx, csv); inferred from extension when empty")
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name to record on the session")

	return cmd
}

func runProcess(cmd *cobra.Command, path, format, bankName string) error {
	ctx := cmd.Context()

	userID, err := requireUser()
	if err != nil {
		return err
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	resolver := rules.NewResolver(store)
	if err := resolver.Seed(ctx); err != nil {
		return err
	}

	parser, err := pickParser(path, format)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied statement path
	if err != nil {
		return fmt.Errorf("failed to read statement file: %w", err)
	}

	stmt, err := parser.Parse(ctx, strings.NewReader(string(data)))
	if err != nil {
		return err
	}

	sessions := session.NewManager(store)
	sess := &model.ImportSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		Filename:    filepath.Base(path),
		FileSize:    int64(len(data)),
		FileHash:    fmt.Sprintf("%x", sha256.Sum256(data)),
		Status:      model.SessionUploading,
		AutoCleanup: true,
	}
	if err := sessions.Create(ctx, sess); err != nil {
		return err
	}

	if bankName == "" {
		bankName = stmt.BankName
	}
	var period *model.StatementPeriod
	if !stmt.PeriodStart.IsZero() {
		period = &model.StatementPeriod{Start: stmt.PeriodStart, End: stmt.PeriodEnd}
	}
	if err := sessions.SetMetadata(ctx, sess.ID, bankName, stmt.AccountNumber, period); err != nil {
		return err
	}

	pipeline := engine.NewPipeline(store, sessions, ingest.NewIngestor(store), resolver, suggest.NewBuilder(store))

	bar := progressbar.NewOptions(len(stmt.Lines),
		progressbar.OptionSetDescription("Classifying transactions"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionClearOnFinish(),
	)
	pipeline.OnProgress(func(done, _ int) {
		_ = bar.Set(done)
	})

	result, err := pipeline.Process(ctx, userID, sess.ID, stmt.Lines)
	if err != nil {
		return err
	}
	_ = bar.Finish()

	cmd.Printf("Session %s completed\n", sess.ID)
	cmd.Printf("  imported:    %d\n", result.Batch.Imported)
	cmd.Printf("  duplicates:  %d\n", result.Batch.Duplicates)
	cmd.Printf("  failed:      %d\n", len(result.Batch.Failures))
	cmd.Printf("  suggestions: %d\n", len(result.Suggestions))

	for i, s := range result.Suggestions {
		cmd.Printf("  [%d] %s  %s/%s  %s  %s  confidence %.2f\n",
			i, s.Payee, s.Category, s.Subcategory, s.Amount.StringFixed(2), s.Frequency, s.Confidence)
	}

	return nil
}

// pickParser selects a statement adapter by explicit format or extension.
func pickParser(path, format string) (statement.Parser, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".ofx", ".qfx":
			format = "ofx"
		case ".csv":
			format = "csv"
		}
	}

	switch format {
	case "ofx":
		return statement.NewOFXParser(), nil
	case "csv":
		return statement.NewCSVParser(), nil
	}
	return nil, fmt.Errorf("unsupported statement format %q", format)
}

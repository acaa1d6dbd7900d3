package main

import (
	"fmt"
	"time"

	"github.com/homevault/reconcile/internal/model"

	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect import sessions",
	}

	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsSweepCmd())

	return cmd
}

func sessionsListCmd() *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the acting user's import sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var status *model.SessionStatus
			if statusFilter != "" {
				s := model.SessionStatus(statusFilter)
				if err := s.Validate(); err != nil {
					return err
				}
				status = &s
			}

			sessions, err := store.ListSessionsByUser(cmd.Context(), userID, status)
			if err != nil {
				return err
			}

			if len(sessions) == 0 {
				cmd.Println("No sessions found")
				return nil
			}

			for _, sess := range sessions {
				cmd.Printf("%s  %-10s  %-30s  %d txns, %d recurring\n",
					sess.ID, sess.Status, sess.Filename,
					sess.Statistics.TotalTransactions, sess.Statistics.RecurringDetected)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "filter by status")
	return cmd
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sess, err := store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cmd.Printf("Session %s (%s)\n", sess.ID, sess.Status)
			cmd.Printf("  file:    %s (%d bytes)\n", sess.Filename, sess.FileSize)
			if sess.BankName != "" {
				cmd.Printf("  bank:    %s  account %s\n", sess.BankName, sess.AccountNumber)
			}
			if sess.StatementPeriod != nil {
				cmd.Printf("  period:  %s to %s\n",
					sess.StatementPeriod.Start.Format("2006-01-02"),
					sess.StatementPeriod.End.Format("2006-01-02"))
			}
			if sess.ProcessingStage != "" {
				cmd.Printf("  stage:   %s\n", sess.ProcessingStage)
			}
			if sess.ErrorMessage != "" {
				cmd.Printf("  error:   %s\n", sess.ErrorMessage)
			}
			cmd.Printf("  stats:   %d txns, %d recurring, %d day span, debits %s, credits %s\n",
				sess.Statistics.TotalTransactions, sess.Statistics.RecurringDetected,
				sess.Statistics.DateRangeDays,
				sess.Statistics.TotalDebits.StringFixed(2),
				sess.Statistics.TotalCredits.StringFixed(2))
			cmd.Printf("  expires: %s\n", sess.ExpiresAt.Format(time.RFC3339))

			for i, s := range sess.Suggestions {
				cmd.Printf("  [%d] %-8s %s  %s/%s  %s  %s  confidence %.2f\n",
					i, s.Status, s.Payee, s.Category, s.Subcategory,
					s.Amount.StringFixed(2), s.Frequency, s.Confidence)
			}
			return nil
		},
	}
}

func sessionsSweepCmd() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire and optionally delete sessions past their retention",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			now := time.Now()
			expired, err := store.ExpireStale(cmd.Context(), now)
			if err != nil {
				return err
			}
			cmd.Printf("Expired %d sessions\n", expired)

			if remove {
				deleted, err := store.DeleteExpired(cmd.Context(), now)
				if err != nil {
					return err
				}
				cmd.Printf("Deleted %d sessions\n", deleted)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "delete", false, "also delete terminal sessions past expiry")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			version, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println(fmt.Sprintf("Database at schema version %d", version))
			return nil
		},
	}
}

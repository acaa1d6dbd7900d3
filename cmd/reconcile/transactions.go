package main

import (
	"time"

	"github.com/homevault/reconcile/internal/confirm"
	"github.com/homevault/reconcile/internal/model"

	"github.com/spf13/cobra"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Inspect and manage imported transactions",
	}

	cmd.AddCommand(transactionsListCmd())
	cmd.AddCommand(transactionsIgnoreCmd())
	cmd.AddCommand(transactionsUndoCmd())

	return cmd
}

func transactionsListCmd() *cobra.Command {
	var sessionID, statusFilter, fromDate, toDate string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions by session, status or date range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			var txns []model.Transaction

			switch {
			case sessionID != "":
				txns, err = store.ListTransactionsBySession(ctx, sessionID)
			case statusFilter != "":
				userID, userErr := requireUser()
				if userErr != nil {
					return userErr
				}
				txns, err = store.ListTransactionsByUserStatus(ctx, userID, model.TransactionStatus(statusFilter))
			default:
				userID, userErr := requireUser()
				if userErr != nil {
					return userErr
				}
				start, end, rangeErr := parseDateRange(fromDate, toDate)
				if rangeErr != nil {
					return rangeErr
				}
				txns, err = store.ListTransactionsByUserDateRange(ctx, userID, start, end)
			}
			if err != nil {
				return err
			}

			if len(txns) == 0 {
				cmd.Println("No transactions found")
				return nil
			}

			for _, txn := range txns {
				marker := " "
				if txn.PatternMatched {
					marker = "*"
				}
				cmd.Printf("%s  %s %s  %-14s  %10s  %s\n",
					txn.ID, marker, txn.Date.Format("2006-01-02"),
					txn.Status, txn.Amount.StringFixed(2), txn.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "list a session's transactions")
	cmd.Flags().StringVar(&statusFilter, "status", "", "list the user's transactions in a status")
	cmd.Flags().StringVar(&fromDate, "from", "", "date range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toDate, "to", "", "date range end (YYYY-MM-DD)")

	return cmd
}

func transactionsIgnoreCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "ignore <transaction-id>",
		Short: "Ignore a pending transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := confirm.NewLifecycle(store).Ignore(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			cmd.Println("Transaction ignored")
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "not relevant", "why the transaction is ignored")
	return cmd
}

func transactionsUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo <transaction-id>",
		Short: "Return an ignored transaction to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := confirm.NewLifecycle(store).Undo(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Println("Transaction restored to pending")
			return nil
		},
	}
}

func parseDateRange(from, to string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now()

	if from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return start, end, err
		}
		start = parsed
	}
	if to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return start, end, err
		}
		end = parsed
	}
	return start, end, nil
}

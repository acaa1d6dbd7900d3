package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/homevault/reconcile/internal/confirm"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func suggestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "Review and resolve recurring-payment suggestions",
	}

	cmd.AddCommand(suggestionsListCmd())
	cmd.AddCommand(suggestionsResolveCmd("accept", "Accept a suggestion and create its record"))
	cmd.AddCommand(suggestionsResolveCmd("reject", "Reject a suggestion"))

	return cmd
}

func suggestionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <session-id>",
		Short: "List a session's suggestions",
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

			if len(sess.Suggestions) == 0 {
				cmd.Println("No suggestions")
				return nil
			}

			for i, s := range sess.Suggestions {
				cmd.Printf("[%d] %-8s %s  %s/%s  %s  %s  confidence %.2f  (%d txns)\n",
					i, s.Status, s.Payee, s.Category, s.Subcategory,
					s.Amount.StringFixed(2), s.Frequency, s.Confidence, len(s.TransactionIDs))
			}
			return nil
		},
	}
}

func suggestionsResolveCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <session-id> <index>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid suggestion index %q: %w", args[1], err)
			}

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			handler := confirm.NewHandler(store, newFileRecordStore())

			if action == "accept" {
				s, err := handler.Accept(cmd.Context(), args[0], index)
				if err != nil {
					return err
				}
				cmd.Printf("Accepted %s; record created\n", s.Payee)
				return nil
			}

			s, err := handler.Reject(cmd.Context(), args[0], index)
			if err != nil {
				return err
			}
			cmd.Printf("Rejected %s\n", s.Payee)
			return nil
		},
	}
}

// fileRecordStore is a stand-in for the household record store: it appends
// created records as JSON lines next to the database.
type fileRecordStore struct {
	path string
}

func newFileRecordStore() *fileRecordStore {
	dbPath := viper.GetString("database.path")
	dir := "."
	if dbPath != "" {
		dir = filepath.Dir(dbPath)
	}
	return &fileRecordStore{path: filepath.Join(dir, "records.jsonl")}
}

func (f *fileRecordStore) Create(_ context.Context, req confirm.RecordRequest) (string, error) {
	recordID := uuid.NewString()

	entry := struct {
		ID string `json:"id"`
		confirm.RecordRequest
	}{ID: recordID, RecordRequest: req}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to open record store: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return "", fmt.Errorf("failed to write record: %w", err)
	}
	return recordID, nil
}

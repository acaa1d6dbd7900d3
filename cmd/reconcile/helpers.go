package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/homevault/reconcile/internal/common"
	"github.com/homevault/reconcile/internal/storage"

	"github.com/spf13/viper"
)

// openStorage opens the configured database. Schema migration is explicit:
// the process, rules seed and migrate commands run it.
func openStorage() (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "reconcile", "reconcile.db")
	}

	return storage.NewSQLiteStorage(dbPath)
}

// requireUser returns the acting user ID or an error if none is configured.
func requireUser() (string, error) {
	user := viper.GetString("user")
	if user == "" {
		return "", common.NewUserError("no user configured; pass --user or set RECONCILE_USER", common.ErrMissingConfig)
	}
	return user, nil
}

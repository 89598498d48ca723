package commands

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/clinsight/takforge/config"
	"github.com/clinsight/takforge/db"
	"github.com/clinsight/takforge/errors"
	"github.com/clinsight/takforge/logger"
)

// loadConfig resolves configuration for a command, honoring the global
// --config flag before falling back to discovery.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// openDatabase opens and migrates the registry database.
func openDatabase(path string) (*sql.DB, error) {
	database, err := db.Open(path, logger.Logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		return nil, errors.CombineErrors(err, database.Close())
	}
	return database, nil
}

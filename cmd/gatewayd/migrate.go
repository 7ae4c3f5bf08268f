package main

import (
	"fmt"

	"github.com/cuemby/gatewayd/pkg/config"
	"github.com/cuemby/gatewayd/pkg/log"
	"github.com/cuemby/gatewayd/pkg/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database schema migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringP("config", "c", "gatewayd.yaml", "Path to the gateway YAML config file")
	migrateCmd.Flags().String("db-url", "", "Database URL to migrate, overriding the config file")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dbURL, _ := cmd.Flags().GetString("db-url")

	if dbURL == "" {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dbURL = cfg.DBURL
	}

	version, dirty, err := storage.Migrate(dbURL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Logger.Info().Uint("version", version).Bool("dirty", dirty).Str("db_url", dbURL).Msg("migrations applied")
	return nil
}

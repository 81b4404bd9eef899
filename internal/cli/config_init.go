package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rshade/ghgfocus/internal/config"
)

// NewConfigInitCmd creates the config init command for initializing configuration.
// The file is written to the --config path when given, else to
// $GHGFOCUS_HOME/config.yaml.
func NewConfigInitCmd() *cobra.Command {
	var (
		force  bool
		sqlite bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Example: `  # Create the default configuration
  ghgfocus config init

  # Persist records in a SQLite database under the data directory
  ghgfocus config init --sqlite

  # Overwrite an existing configuration
  ghgfocus config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			return initConfig(cmd, path, force, sqlite)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&sqlite, "sqlite", false, "store records in SQLite instead of memory")

	return cmd
}

// initConfig writes the default configuration to path.
func initConfig(cmd *cobra.Command, path string, force, sqlite bool) error {
	cfg := config.New()
	if path != "" {
		cfg.SetConfigPath(path)
	}

	// Check if config already exists and force isn't set
	if !force {
		if _, err := os.Stat(cfg.ConfigPath()); err == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access config path %s: %w", cfg.ConfigPath(), err)
		}
	}

	if sqlite {
		dir, err := config.GetDataDir()
		if err != nil {
			return err
		}
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.DSN = filepath.Join(dir, "ghgfocus.db")
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", cfg.ConfigPath())

	return nil
}

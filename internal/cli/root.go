package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/ghgfocus/internal/config"
	"github.com/rshade/ghgfocus/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the ghgfocus CLI.
// It wires up configuration, logging, tracing and the mapping, sync,
// inventory, report, tags and config command groups.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup for testability.
// The lookup resolves integration tokens and the GHGFOCUS_* overrides.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	var (
		logResult  *logging.LogPathResult
		configPath string
	)

	cmd := &cobra.Command{
		Use:          "ghgfocus",
		Short:        "Greenhouse gas inventory, reporting and disclosure tagging",
		Long:         "ghgfocus: Sync activity data, aggregate a GHG Protocol inventory and render disclosures",
		Version:      ver,
		Example:      rootCmdExample,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if envErr := cfg.ApplyEnv(lookupEnv); envErr != nil {
				return envErr
			}
			config.SetGlobalConfig(cfg)

			result := setupLogging(cmd, lookupEnv)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to the configuration file (default $GHGFOCUS_HOME/config.yaml)")
	cmd.AddCommand(
		newMappingCmd(),
		newSyncCmd(lookupEnv),
		newInventoryCmd(),
		newQueryCmd(),
		newReportCmd(),
		newTagsCmd(),
		newConfigCmd(),
		newVersionCmd(ver),
	)

	return cmd
}

const rootCmdExample = `  # Create the default configuration
  ghgfocus config init

  # Map a GL account to Scope 1 stationary combustion
  ghgfocus mapping add --integration sap-1 --field-type gl_account --value 500100 \
    --scope 1 --category stationary_combustion

  # Import a year of activity data
  ghgfocus sync run --integration sap-1 --company acme --from 2024-01-01 --to 2024-12-31

  # Show the 2024 inventory against 2023
  ghgfocus inventory show --company acme --from 2024-01-01 --to 2024-12-31 \
    --previous-from 2023-01-01 --previous-to 2023-12-31

  # Render the narrative report as HTML
  ghgfocus report render --company acme --from 2024-01-01 --to 2024-12-31 --format html --out report.html

  # Render inline tagged XHTML and validate it
  ghgfocus tags render --company acme --from 2024-01-01 --to 2024-12-31 --inline --out tags.xhtml
  ghgfocus tags validate tags.xhtml`

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigValidateCmd())
	return cmd
}

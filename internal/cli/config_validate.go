package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/ghgfocus/internal/config"
	"github.com/rshade/ghgfocus/internal/mapping"
	"github.com/rshade/ghgfocus/internal/render/tags"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the loaded configuration for syntax and semantic correctness.

This includes:
- Section value ranges and enumerations
- Integration ids being unique
- The tag taxonomy version being supported by the tag framework
- The mapping rules file being readable`,
		Example: `  # Validate current configuration
  ghgfocus config validate

  # Validate and show detailed information
  ghgfocus config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := config.GetGlobalConfig()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	known := newAdapters().SystemTypes()
	for _, in := range cfg.Integrations {
		if !slices.Contains(known, in.SystemType) {
			return fmt.Errorf("configuration validation failed: integration %s: unknown system type %q (want %s)",
				in.ID, in.SystemType, strings.Join(known, ", "))
		}
	}
	if _, err := tags.LookupTaxonomy(tags.Framework(cfg.Tags.Framework), cfg.Tags.TaxonomyVersion); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	reg, err := openMappings(cfg)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	groups, err := reg.ListActive(cmd.Context(), "")
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Printf("Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg, groups)
	}

	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config, groups []mapping.Group) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Config file: %s\n", cfg.ConfigPath())
	cmd.Printf("  Organization: %s\n", cfg.Organization.Name)
	cmd.Printf("  Report framework: %s\n", cfg.Report.Framework)
	cmd.Printf("  Tag framework: %s %s\n", cfg.Tags.Framework, cfg.Tags.TaxonomyVersion)
	cmd.Printf("  Storage: %s\n", cfg.Storage.Driver)
	cmd.Printf("  Lock backend: %s\n", cfg.Sync.LockBackend)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)

	if len(cfg.Integrations) == 0 {
		cmd.Println("  No integrations configured")
	} else {
		cmd.Printf("  Integrations: %d\n", len(cfg.Integrations))
		for _, in := range cfg.Integrations {
			cmd.Printf("    - %s (%s, company %s, connected %t)\n", in.ID, in.SystemType, in.CompanyID, in.Connected)
		}
	}

	active := 0
	for _, g := range groups {
		active += len(g.Rules)
	}
	cmd.Printf("  Active mapping rules: %d\n", active)
}

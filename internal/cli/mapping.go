package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/mapping"
)

// mappingRuleParams holds the flags describing one rule on the command line.
type mappingRuleParams struct {
	integration string
	fieldType   string
	value       string
	scope       string
	category    string
	subcategory string
	method      string
	sourceUnit  string
	defaultUnit string
	factor      string
	file        string
	company     string
}

// newMappingCmd creates the mapping command group.
func newMappingCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "mapping", Short: "Field mapping rule commands"}
	cmd.AddCommand(NewMappingAddCmd(), NewMappingListCmd(), NewMappingRemoveCmd())
	return cmd
}

// NewMappingAddCmd creates the "mapping add" command. Rules come either from
// flags or from a YAML rules file; every rule is applied on its own and
// rejected rules are reported without blocking the rest.
func NewMappingAddCmd() *cobra.Command {
	var params mappingRuleParams

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update mapping rules",
		Example: `  # Map a GL account to Scope 1 stationary combustion
  ghgfocus mapping add --integration sap-1 --field-type gl_account --value 500100 \
    --scope 1 --category stationary_combustion

  # Convert gallons of diesel to liters on the way in
  ghgfocus mapping add --integration sap-1 --field-type vendor --value "Fuel Co" \
    --scope 1 --category mobile_combustion --source-unit gal --default-unit l --factor 3.78541

  # Import rules from a file
  ghgfocus mapping add --file rules.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMappingAdd(cmd, &params)
		},
	}

	addRuleKeyFlags(cmd, &params)
	cmd.Flags().StringVar(&params.scope, "scope", "", "target scope: 1, 2 or 3")
	cmd.Flags().StringVar(&params.category, "category", "", "target category id")
	cmd.Flags().StringVar(&params.subcategory, "subcategory", "", "target subcategory")
	cmd.Flags().StringVar(&params.method, "method", "", "scope 2 method: location_based or market_based")
	cmd.Flags().StringVar(&params.sourceUnit, "source-unit", "", "raw unit the conversion factor applies to")
	cmd.Flags().StringVar(&params.defaultUnit, "default-unit", "", "canonical unit after conversion")
	cmd.Flags().StringVar(&params.factor, "factor", "", "conversion factor from source unit to default unit")
	cmd.Flags().StringVar(&params.file, "file", "", "YAML rules file to import instead of flags")
	cmd.MarkFlagsMutuallyExclusive("file", "value")
	return cmd
}

func addRuleKeyFlags(cmd *cobra.Command, params *mappingRuleParams) {
	cmd.Flags().StringVar(&params.integration, "integration", "", "integration id")
	cmd.Flags().StringVar(&params.fieldType, "field-type", "",
		"source field: gl_account, expense_category, vendor or cost_center")
	cmd.Flags().StringVar(&params.value, "value", "", "source field value")
	cmd.Flags().StringVar(&params.company, "company", "",
		"act on behalf of this company; integrations of other companies are refused")
}

func runMappingAdd(cmd *cobra.Command, params *mappingRuleParams) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := openMappings(cfg)
	if err != nil {
		return err
	}

	var rules []mapping.Rule
	if params.file != "" {
		rules, err = mapping.LoadRulesFile(params.file)
	} else {
		var rule mapping.Rule
		rule, err = params.rule()
		rules = []mapping.Rule{rule}
	}
	if err != nil {
		return err
	}

	result, err := reg.Upsert(ctx, caller(params.company), rules)
	if err != nil {
		return err
	}
	for _, r := range result.Applied {
		cmd.Printf("Applied %s\n", r.Key())
	}
	for _, e := range result.Errors {
		cmd.PrintErrf("Rejected %s\n", e.Error())
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d of %d mapping rule(s) rejected", len(result.Errors), len(rules))
	}
	return nil
}

// rule builds a mapping rule from flags. Field validation is left to the registry.
func (p *mappingRuleParams) rule() (mapping.Rule, error) {
	rule := mapping.Rule{
		IntegrationID:     p.integration,
		SourceFieldType:   mapping.FieldType(p.fieldType),
		SourceFieldValue:  p.value,
		TargetCategory:    p.category,
		TargetSubcategory: p.subcategory,
		CalculationMethod: ghg.CalculationMethod(p.method),
	}
	if p.scope != "" {
		scope, err := ghg.ParseScope(p.scope)
		if err != nil {
			return mapping.Rule{}, err
		}
		rule.TargetScope = scope
	}
	if p.defaultUnit != "" || p.factor != "" || p.sourceUnit != "" {
		factor := decimal.NewFromInt(1)
		if p.factor != "" {
			f, err := decimal.NewFromString(p.factor)
			if err != nil {
				return mapping.Rule{}, fmt.Errorf("parsing --factor: %w", err)
			}
			factor = f
		}
		rule.UnitConversion = &mapping.UnitConversion{
			SourceUnit:  p.sourceUnit,
			DefaultUnit: p.defaultUnit,
			Factor:      factor,
		}
	}
	return rule, nil
}

// NewMappingListCmd creates the "mapping list" command.
func NewMappingListCmd() *cobra.Command {
	var (
		integration string
		all         bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mapping rules grouped by integration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg, err := openMappings(cfg)
			if err != nil {
				return err
			}
			list := reg.ListActive
			if all {
				list = reg.ListAll
			}
			groups, err := list(cmd.Context(), integration)
			if err != nil {
				return err
			}
			return printMappingGroups(cmd, groups, all)
		},
	}

	cmd.Flags().StringVar(&integration, "integration", "", "only list rules of this integration")
	cmd.Flags().BoolVar(&all, "all", false, "include deactivated rules")
	return cmd
}

func printMappingGroups(cmd *cobra.Command, groups []mapping.Group, withStatus bool) error {
	if len(groups) == 0 {
		cmd.Println("No mapping rules")
		return nil
	}

	const padding = 2
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, padding, ' ', 0)
	header := "INTEGRATION\tFIELD\tVALUE\tSCOPE\tCATEGORY\tMETHOD\tUNIT"
	if withStatus {
		header += "\tACTIVE"
	}
	fmt.Fprintln(w, header)
	for _, g := range groups {
		for _, r := range g.Rules {
			unit := "-"
			if r.UnitConversion != nil {
				unit = r.UnitConversion.DefaultUnit
			}
			method := string(r.CalculationMethod)
			if method == "" {
				method = "-"
			}
			line := fmt.Sprintf("%s\t%s\t%s\t%d\t%s\t%s\t%s",
				g.IntegrationID, r.SourceFieldType, r.SourceFieldValue,
				int(r.TargetScope), r.TargetCategory, method, unit)
			if withStatus {
				line += "\t" + strconv.FormatBool(r.Active)
			}
			fmt.Fprintln(w, line)
		}
	}
	return w.Flush()
}

// NewMappingRemoveCmd creates the "mapping remove" command. Rules are
// deactivated, never deleted, so their history stays auditable.
func NewMappingRemoveCmd() *cobra.Command {
	var params mappingRuleParams

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Deactivate a mapping rule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg, err := openMappings(cfg)
			if err != nil {
				return err
			}
			key := mapping.Key{
				IntegrationID: params.integration,
				FieldType:     mapping.FieldType(params.fieldType),
				Value:         params.value,
			}
			if _, err = reg.Deactivate(cmd.Context(), caller(params.company), key); err != nil {
				return err
			}
			cmd.Printf("Deactivated %s\n", key)
			return nil
		},
	}

	addRuleKeyFlags(cmd, &params)
	for _, name := range []string{"integration", "field-type", "value"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// caller identifies the person running the command for rule history.
func caller(companyID string) mapping.Caller {
	return mapping.Caller{CompanyID: companyID, Actor: os.Getenv("USER")}
}

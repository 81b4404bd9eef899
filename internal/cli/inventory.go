package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/ghgfocus/internal/config"
	"github.com/rshade/ghgfocus/internal/engine"
	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/greenops"
	"github.com/rshade/ghgfocus/internal/store"
	"github.com/rshade/ghgfocus/internal/tui"
)

// inventoryParams selects the records an inventory is built from.
type inventoryParams struct {
	company     string
	fromStr     string
	toStr       string
	prevFromStr string
	prevToStr   string
}

func addInventoryFlags(cmd *cobra.Command, params *inventoryParams) {
	cmd.Flags().StringVar(&params.company, "company", "", "company id whose records are aggregated")
	cmd.Flags().StringVar(&params.fromStr, "from", "", "reporting period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&params.toStr, "to", "", "reporting period end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&params.prevFromStr, "previous-from", "", "comparison period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&params.prevToStr, "previous-to", "", "comparison period end (YYYY-MM-DD)")
	cmd.MarkFlagsRequiredTogether("previous-from", "previous-to")
	_ = cmd.MarkFlagRequired("company")
}

// buildInventory aggregates the company's calculated records for the
// reporting period, plus the comparison period when one is given.
func buildInventory(ctx context.Context, cfg *config.Config, st store.RecordStore, params *inventoryParams) (*ghg.AggregatedInventory, error) {
	period, err := ParsePeriod(params.fromStr, params.toStr)
	if err != nil {
		return nil, err
	}
	opts := engine.AggregateOptions{
		Organization: cfg.Organization,
		Methodology:  engine.DefaultMethodology,
	}

	if params.prevFromStr != "" {
		prevPeriod, prevErr := ParsePeriod(params.prevFromStr, params.prevToStr)
		if prevErr != nil {
			return nil, fmt.Errorf("comparison period: %w", prevErr)
		}
		if period.Overlaps(prevPeriod.Start, prevPeriod.End) {
			return nil, fmt.Errorf("comparison period %s overlaps reporting period %s", prevPeriod, period)
		}
		previous, _, prevErr := aggregatePeriod(ctx, st, params.company, prevPeriod, engine.AggregateOptions{
			Organization: cfg.Organization,
		})
		if prevErr != nil {
			return nil, fmt.Errorf("comparison period: %w", prevErr)
		}
		opts.Previous = previous
	}

	inv, pending, err := aggregatePeriod(ctx, st, params.company, period, opts)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		logger.Warn().Ctx(ctx).
			Int("pending", inv.PendingCount).
			Msg("records awaiting an emission factor are excluded; run 'ghgfocus sync enrich'")
	}
	return inv, nil
}

func aggregatePeriod(
	ctx context.Context,
	st store.RecordStore,
	company string,
	period ghg.Period,
	opts engine.AggregateOptions,
) (*ghg.AggregatedInventory, []ghg.Record, error) {
	records, err := st.ListRecords(ctx, store.RecordFilter{
		OwnerID: company,
		From:    period.Start,
		To:      period.End,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("listing records for %s: %w", company, err)
	}
	return engine.AggregateRecords(ctx, records, period, opts)
}

// newInventoryCmd creates the inventory command group.
func newInventoryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "inventory", Short: "Emissions inventory commands"}
	cmd.AddCommand(NewInventoryShowCmd())
	return cmd
}

// NewInventoryShowCmd creates the "inventory show" command. The terminal
// summary is styled; --json prints the aggregated inventory instead.
func NewInventoryShowCmd() *cobra.Command {
	var (
		params  inventoryParams
		asJSON  bool
		withTop int
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Aggregate and display an emissions inventory",
		Example: `  # Inventory for 2024
  ghgfocus inventory show --company acme --from 2024-01-01 --to 2024-12-31

  # With a year-over-year comparison
  ghgfocus inventory show --company acme --from 2024-01-01 --to 2024-12-31 \
    --previous-from 2023-01-01 --previous-to 2023-12-31`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			inv, err := buildInventory(ctx, svc.cfg, svc.store, &params)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), inv)
			}
			cmd.Println(tui.RenderInventorySummary(inv))
			if withTop > 0 {
				return printTopSources(cmd, svc.store, &params, inv.Period, withTop)
			}
			return nil
		},
	}

	addInventoryFlags(cmd, &params)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the inventory as JSON")
	cmd.Flags().IntVar(&withTop, "top", 0, "also list the N largest emission sources")
	return cmd
}

func printTopSources(cmd *cobra.Command, st store.RecordStore, params *inventoryParams, period ghg.Period, n int) error {
	calc, err := calculatedRecords(cmd.Context(), st, params.company, period)
	if err != nil {
		return err
	}
	cmd.Printf("\nTop %d sources\n", n)
	for i, rec := range engine.TopSources(calc, n) {
		cmd.Printf("%2d. %-8s %-32s %s\n", i+1, rec.Scope().Label(), rec.Category(), greenops.FormatTonnes(rec.TotalCO2e()))
	}
	return nil
}

// calculatedRecords loads the company's calculated records dated inside period.
func calculatedRecords(ctx context.Context, st store.RecordStore, company string, period ghg.Period) ([]ghg.CalculatedRecord, error) {
	calculated := ghg.StatusCalculated
	records, err := st.ListRecords(ctx, store.RecordFilter{
		OwnerID: company,
		Status:  &calculated,
		From:    period.Start,
		To:      period.End,
	})
	if err != nil {
		return nil, fmt.Errorf("listing records for %s: %w", company, err)
	}
	calc, _ := ghg.SplitCalculated(records)
	return calc, nil
}

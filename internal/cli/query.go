package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/ghgfocus/internal/engine"
	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/greenops"
)

// queryParams selects the company and period a query reads.
type queryParams struct {
	company string
	fromStr string
	toStr   string
	asJSON  bool
}

func addQueryFlags(cmd *cobra.Command, params *queryParams) {
	cmd.Flags().StringVar(&params.company, "company", "", "company id whose records are queried")
	cmd.Flags().StringVar(&params.fromStr, "from", "", "period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&params.toStr, "to", "", "period end (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&params.asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("company")
}

// newQueryCmd creates the query command group.
func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "query", Short: "Dashboard projections of calculated records"}
	cmd.AddCommand(
		NewQuerySummaryCmd(),
		NewQueryTrendCmd(),
		NewQuerySourcesCmd(),
		NewQueryFacilitiesCmd(),
		NewQueryQualityCmd(),
	)
	return cmd
}

// queryInput is what every query reads: the period and its calculated records.
type queryInput struct {
	period  ghg.Period
	records []ghg.CalculatedRecord
}

func loadQueryInput(cmd *cobra.Command, params *queryParams) (*queryInput, error) {
	period, err := ParsePeriod(params.fromStr, params.toStr)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	svc, err := openServices(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = svc.Close() }()

	records, err := calculatedRecords(ctx, svc.store, params.company, period)
	if err != nil {
		return nil, err
	}
	return &queryInput{period: period, records: records}, nil
}

// aggregate builds the inventory of the query input.
func (in *queryInput) aggregate(cmd *cobra.Command) (*ghg.AggregatedInventory, error) {
	return engine.Aggregate(cmd.Context(), in.records, in.period, engine.AggregateOptions{
		Methodology: engine.DefaultMethodology,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(cmd *cobra.Command) *tabwriter.Writer {
	const padding = 2
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, padding, ' ', 0)
}

// NewQuerySummaryCmd creates the "query summary" command.
func NewQuerySummaryCmd() *cobra.Command {
	var params queryParams

	cmd := &cobra.Command{
		Use:     "summary",
		Short:   "Totals per scope and scope 2 method",
		Example: `  ghgfocus query summary --company acme --from 2024-01-01 --to 2024-12-31`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := loadQueryInput(cmd, &params)
			if err != nil {
				return err
			}
			inv, err := in.aggregate(cmd)
			if err != nil {
				return err
			}
			summary := engine.SummaryByScope(inv)
			if params.asJSON {
				return printJSON(cmd.OutOrStdout(), summary)
			}

			w := newTable(cmd)
			fmt.Fprintln(w, "SCOPE\tTOTAL")
			fmt.Fprintf(w, "Scope 1\t%s\n", greenops.FormatTonnes(summary.Scope1))
			fmt.Fprintf(w, "Scope 2 (location-based)\t%s\n", greenops.FormatTonnes(summary.Scope2Location))
			fmt.Fprintf(w, "Scope 2 (market-based)\t%s\n", greenops.FormatTonnes(summary.Scope2Market))
			fmt.Fprintf(w, "Scope 3\t%s\n", greenops.FormatTonnes(summary.Scope3))
			fmt.Fprintf(w, "Total (%s)\t%s\n", summary.Scope2Method, greenops.FormatTonnes(summary.Total))
			return w.Flush()
		},
	}
	addQueryFlags(cmd, &params)
	return cmd
}

// NewQueryTrendCmd creates the "query trend" command.
func NewQueryTrendCmd() *cobra.Command {
	var (
		params      queryParams
		granularity string
	)

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Totals per month, quarter or year",
		Example: `  # Quarterly totals for 2024
  ghgfocus query trend --company acme --from 2024-01-01 --to 2024-12-31 --granularity quarterly`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := engine.ParseGranularity(granularity)
			if err != nil {
				return err
			}
			in, err := loadQueryInput(cmd, &params)
			if err != nil {
				return err
			}
			points, err := engine.Trend(cmd.Context(), in.records, in.period, g)
			if err != nil {
				return err
			}
			if params.asJSON {
				return printJSON(cmd.OutOrStdout(), points)
			}

			w := newTable(cmd)
			fmt.Fprintln(w, "BUCKET\tSCOPE 1\tSCOPE 2\tSCOPE 3\tTOTAL\tRECORDS")
			for _, p := range points {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", p.Label,
					greenops.FormatDecimal(p.Totals.Scope1, 2),
					greenops.FormatDecimal(p.Totals.Scope2Preferred, 2),
					greenops.FormatDecimal(p.Totals.Scope3, 2),
					greenops.FormatDecimal(p.Totals.Total, 2),
					p.RecordCount)
			}
			return w.Flush()
		},
	}
	addQueryFlags(cmd, &params)
	cmd.Flags().StringVar(&granularity, "granularity", string(engine.GranularityMonthly),
		"bucket size: monthly, quarterly or yearly")
	return cmd
}

// NewQuerySourcesCmd creates the "query sources" command.
func NewQuerySourcesCmd() *cobra.Command {
	var (
		params   queryParams
		scope    string
		category string
		method   string
		top      int
	)

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the calculated records behind the totals",
		Example: `  # Business travel records
  ghgfocus query sources --company acme --from 2024-01-01 --to 2024-12-31 --scope 3 --category 6

  # The ten largest sources
  ghgfocus query sources --company acme --from 2024-01-01 --to 2024-12-31 --top 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := engine.SourceFilter{Category: category, Method: ghg.CalculationMethod(method)}
			if scope != "" {
				s, err := ghg.ParseScope(scope)
				if err != nil {
					return err
				}
				filter.Scope = s
			}
			in, err := loadQueryInput(cmd, &params)
			if err != nil {
				return err
			}

			records := engine.Sources(in.records, filter)
			if top > 0 {
				records = engine.TopSources(records, top)
			}
			if params.asJSON {
				out := make([]ghg.Record, 0, len(records))
				for _, r := range records {
					out = append(out, r.Record())
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			if len(records) == 0 {
				cmd.Println("No matching records")
				return nil
			}

			w := newTable(cmd)
			fmt.Fprintln(w, "DATE\tSCOPE\tCATEGORY\tFACILITY\tQUALITY\tSOURCE\tTCO2E")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
					r.PeriodStart().Format(time.DateOnly), int(r.Scope()), r.Category(),
					orDash(r.Facility()), r.DataQuality(), r.SourceReference(),
					greenops.FormatDecimal(r.TotalCO2e(), 3))
			}
			return w.Flush()
		},
	}
	addQueryFlags(cmd, &params)
	cmd.Flags().StringVar(&scope, "scope", "", "only this scope: 1, 2 or 3")
	cmd.Flags().StringVar(&category, "category", "", "only this category; scope 3 accepts the number or the id")
	cmd.Flags().StringVar(&method, "method", "", "only this scope 2 method")
	cmd.Flags().IntVar(&top, "top", 0, "keep only the N largest sources")
	return cmd
}

// NewQueryFacilitiesCmd creates the "query facilities" command.
func NewQueryFacilitiesCmd() *cobra.Command {
	var params queryParams

	cmd := &cobra.Command{
		Use:   "facilities",
		Short: "Totals per facility, largest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := loadQueryInput(cmd, &params)
			if err != nil {
				return err
			}
			totals, err := engine.ByFacility(cmd.Context(), in.records, in.period)
			if err != nil {
				return err
			}
			if params.asJSON {
				return printJSON(cmd.OutOrStdout(), totals)
			}

			w := newTable(cmd)
			fmt.Fprintln(w, "FACILITY\tSCOPE 1\tSCOPE 2\tSCOPE 3\tTOTAL\tRECORDS")
			for _, f := range totals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", f.Facility,
					greenops.FormatDecimal(f.Totals.Scope1, 2),
					greenops.FormatDecimal(f.Totals.Scope2Preferred, 2),
					greenops.FormatDecimal(f.Totals.Scope3, 2),
					greenops.FormatDecimal(f.Totals.Total, 2),
					f.RecordCount)
			}
			return w.Flush()
		},
	}
	addQueryFlags(cmd, &params)
	return cmd
}

// NewQueryQualityCmd creates the "query quality" command.
func NewQueryQualityCmd() *cobra.Command {
	var params queryParams

	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Share of records per data quality tier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := loadQueryInput(cmd, &params)
			if err != nil {
				return err
			}
			inv, err := in.aggregate(cmd)
			if err != nil {
				return err
			}
			shares := engine.DataQualityBreakdown(inv)
			if params.asJSON {
				return printJSON(cmd.OutOrStdout(), shares)
			}

			w := newTable(cmd)
			fmt.Fprintln(w, "QUALITY\tRECORDS\tSHARE")
			for _, s := range shares {
				fmt.Fprintf(w, "%s\t%d\t%s%%\n", s.Quality, s.Count, greenops.FormatDecimal(s.Percent, 1))
			}
			return w.Flush()
		},
	}
	addQueryFlags(cmd, &params)
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

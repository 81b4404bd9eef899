package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/ghgfocus/internal/ingest"
	"github.com/rshade/ghgfocus/internal/store"
	"github.com/rshade/ghgfocus/internal/syncer"
)

// syncRunParams holds the flags of "sync run".
type syncRunParams struct {
	integrations []string
	company      string
	syncType     string
	fromStr      string
	toStr        string
	dataTypes    []string
	enrich       bool
}

// newSyncCmd creates the sync command group.
func newSyncCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	cmd := &cobra.Command{Use: "sync", Short: "Activity data sync commands"}
	cmd.AddCommand(NewSyncRunCmd(lookupEnv), NewSyncListCmd(), NewSyncEnrichCmd())
	return cmd
}

// NewSyncRunCmd creates the "sync run" command. Several integrations sync
// in parallel; runs against the same integration are serialized.
func NewSyncRunCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	var params syncRunParams

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import activity data from one or more integrations",
		Example: `  # Import 2024 from one integration
  ghgfocus sync run --integration sap-1 --from 2024-01-01 --to 2024-12-31

  # Only fetch days after the last imported one
  ghgfocus sync run --integration sap-1 --type incremental --from 2024-01-01 --to 2024-12-31

  # Two integrations in parallel, travel and fuel only
  ghgfocus sync run --integration sap-1 --integration concur --data-types travel,fuel \
    --from 2024-01-01 --to 2024-12-31`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, &params, lookupEnv)
		},
	}

	cmd.Flags().StringSliceVar(&params.integrations, "integration", nil, "integration id (repeatable)")
	cmd.Flags().StringVar(&params.company, "company", "",
		"company id (default: the integration's configured company)")
	cmd.Flags().StringVar(&params.syncType, "type", string(syncer.TypeFull), "sync type: full or incremental")
	cmd.Flags().StringVar(&params.fromStr, "from", "", "first day to import (YYYY-MM-DD)")
	cmd.Flags().StringVar(&params.toStr, "to", "", "last day to import (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&params.dataTypes, "data-types", nil,
		"comma-separated data types: fuel, electricity, travel, procurement, waste (default all)")
	cmd.Flags().BoolVar(&params.enrich, "enrich", true,
		"attach library emission factors to spend-based records after a completed run")
	_ = cmd.MarkFlagRequired("integration")
	return cmd
}

func runSync(cmd *cobra.Command, params *syncRunParams, lookupEnv func(string) (string, bool)) error {
	ctx := cmd.Context()
	period, err := ParsePeriod(params.fromStr, params.toStr)
	if err != nil {
		return err
	}
	dataTypes, err := parseDataTypes(params.dataTypes)
	if err != nil {
		return err
	}

	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	runner, err := svc.syncService(ctx, lookupEnv)
	if err != nil {
		return err
	}

	reqs := make([]syncer.Request, 0, len(params.integrations))
	for _, id := range params.integrations {
		company := params.company
		if company == "" {
			if in, ok := svc.cfg.Integration(id); ok {
				company = in.CompanyID
			}
		}
		reqs = append(reqs, syncer.Request{
			CompanyID:     company,
			IntegrationID: id,
			Type:          syncer.Type(params.syncType),
			Range:         ingest.DateRange{From: period.Start, To: period.End},
			DataTypes:     dataTypes,
		})
	}

	results, runErr := runner.TriggerAll(ctx, reqs)
	for _, res := range results {
		if res != nil {
			printRunResult(cmd, res)
		}
	}

	if params.enrich {
		companies := make(map[string]bool)
		for i, res := range results {
			if res != nil && res.Run.Status == store.RunCompleted && res.Run.Pending > 0 {
				companies[reqs[i].CompanyID] = true
			}
		}
		if enrichErr := enrichCompanies(cmd, svc, runner, companies); enrichErr != nil {
			runErr = errors.Join(runErr, enrichErr)
		}
	}
	return runErr
}

func parseDataTypes(raw []string) ([]ingest.DataType, error) {
	out := make([]ingest.DataType, 0, len(raw))
	for _, r := range raw {
		t, err := ingest.ParseDataType(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func printRunResult(cmd *cobra.Command, res *syncer.RunResult) {
	run := res.Run
	cmd.Printf("Run %s (%s, %s %s..%s): %s\n", run.ID, run.IntegrationID, run.SyncType,
		run.From.Format(time.DateOnly), run.To.Format(time.DateOnly), run.Status)
	cmd.Printf("  imported %d, pending factor %d, unmapped %d, failed %d\n",
		run.Imported, run.Pending, run.Unmapped, run.Failed)
	for _, u := range res.Unmapped {
		cmd.Printf("  unmapped %s\n", u.Key)
	}
	for _, e := range res.Errors {
		cmd.Printf("  error: %v\n", e)
	}
}

func enrichCompanies(cmd *cobra.Command, svc *services, runner *syncer.Service, companies map[string]bool) error {
	if len(companies) == 0 {
		return nil
	}
	ctx := cmd.Context()
	lib, err := loadFactors(ctx, svc.cfg)
	if err != nil {
		return err
	}
	for company := range companies {
		res, enrichErr := runner.EnrichPending(ctx, company, lib)
		if enrichErr != nil {
			return enrichErr
		}
		cmd.Printf("Enriched %d record(s) for %s, %d still pending\n", res.Enriched, company, res.Pending)
	}
	return nil
}

// NewSyncEnrichCmd creates the "sync enrich" command, which attaches factors
// from the configured library to a company's pending records.
func NewSyncEnrichCmd() *cobra.Command {
	var company string

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Calculate pending spend-based records from the factor library",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			runner, err := svc.syncService(ctx, os.LookupEnv)
			if err != nil {
				return err
			}
			return enrichCompanies(cmd, svc, runner, map[string]bool{company: true})
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company id")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

// NewSyncListCmd creates the "sync list" command showing an integration's run history.
func NewSyncListCmd() *cobra.Command {
	var integration string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sync runs of an integration, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			runs, err := svc.store.ListRuns(ctx, integration)
			if err != nil {
				return err
			}
			return printRuns(cmd, runs)
		},
	}
	cmd.Flags().StringVar(&integration, "integration", "", "integration id")
	_ = cmd.MarkFlagRequired("integration")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []store.Run) error {
	if len(runs) == 0 {
		cmd.Println("No sync runs")
		return nil
	}
	const padding = 2
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, padding, ' ', 0)
	fmt.Fprintln(w, "RUN\tTYPE\tRANGE\tSTATUS\tIMPORTED\tPENDING\tUNMAPPED\tFAILED\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s..%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.SyncType, r.From.Format(time.DateOnly), r.To.Format(time.DateOnly),
			r.Status, r.Imported, r.Pending, r.Unmapped, r.Failed,
			r.StartedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

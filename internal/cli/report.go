package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/ghgfocus/internal/config"
	"github.com/rshade/ghgfocus/internal/render"
	"github.com/rshade/ghgfocus/internal/render/report"
	"github.com/rshade/ghgfocus/internal/render/tags"
)

// Report output formats.
const (
	FormatHTML = "html"
	FormatText = "text"
	FormatXLSX = "xlsx"
	FormatAll  = "all"
)

// reportParams holds the flags of "report render".
type reportParams struct {
	inventory       inventoryParams
	format          string
	out             string
	sectionsFile    string
	framework       string
	confidentiality string
}

// newReportCmd creates the report command group.
func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Narrative report commands"}
	cmd.AddCommand(NewReportRenderCmd())
	return cmd
}

// NewReportRenderCmd creates the "report render" command. With --format all
// the report, workbook and tag documents are rendered together into the
// --out directory.
func NewReportRenderCmd() *cobra.Command {
	var params reportParams

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the inventory report",
		Example: `  # HTML report with narrative sections
  ghgfocus report render --company acme --from 2024-01-01 --to 2024-12-31 \
    --sections sections.yaml --format html --out report.html

  # Plain text to stdout
  ghgfocus report render --company acme --from 2024-01-01 --to 2024-12-31 --format text

  # Every artifact into a directory
  ghgfocus report render --company acme --from 2024-01-01 --to 2024-12-31 --format all --out dist/`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReportRender(cmd, &params)
		},
	}

	addInventoryFlags(cmd, &params.inventory)
	cmd.Flags().StringVar(&params.format, "format", FormatHTML, "output format: html, text, xlsx or all")
	cmd.Flags().StringVar(&params.out, "out", "", "output file, or directory for --format all (default stdout)")
	cmd.Flags().StringVar(&params.sectionsFile, "sections", "", "YAML file with narrative sections")
	cmd.Flags().StringVar(&params.framework, "framework", "",
		"reporting framework: ghg_protocol, sb253 or csrd (default from config)")
	cmd.Flags().StringVar(&params.confidentiality, "confidentiality", "",
		"confidentiality label printed in footers (default from config)")
	return cmd
}

func runReportRender(cmd *cobra.Command, params *reportParams) error {
	ctx := cmd.Context()
	format := strings.ToLower(params.format)
	switch format {
	case FormatHTML, FormatText:
	case FormatXLSX, FormatAll:
		if params.out == "" {
			return fmt.Errorf("--format %s needs --out", format)
		}
	default:
		return fmt.Errorf("unknown format %q (use html, text, xlsx or all)", params.format)
	}

	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	opts, err := reportOptions(svc.cfg, params.framework, params.confidentiality)
	if err != nil {
		return err
	}
	sections, err := loadSections(params.sectionsFile)
	if err != nil {
		return err
	}
	inv, err := buildInventory(ctx, svc.cfg, svc.store, &params.inventory)
	if err != nil {
		return err
	}

	if format == FormatAll {
		pipeline := &render.Pipeline{MaxParallel: svc.cfg.Sync.MaxParallel}
		res, renderErr := pipeline.RenderAll(ctx, sections, inv, render.Options{
			Report: opts,
			Tags:   tagsOptions(svc.cfg, ""),
		})
		if renderErr != nil {
			return renderErr
		}
		paths, writeErr := pipeline.WriteAll(ctx, params.out, res)
		if writeErr != nil {
			return writeErr
		}
		for _, p := range paths {
			cmd.Printf("Wrote %s\n", p)
		}
		return nil
	}

	if format == FormatXLSX {
		return writeOutput(cmd, params.out, func(w io.Writer) error {
			return report.WriteWorkbook(w, inv, opts)
		})
	}

	doc, err := report.Render(ctx, sections, inv, opts)
	if err != nil {
		return err
	}
	return writeOutput(cmd, params.out, func(w io.Writer) error {
		if format == FormatText {
			return report.WriteText(w, doc)
		}
		return report.WriteHTML(w, doc)
	})
}

// reportOptions merges flag overrides onto the configured report defaults.
func reportOptions(cfg *config.Config, framework, confidentiality string) (report.Options, error) {
	if framework == "" {
		framework = cfg.Report.Framework
	}
	f, err := report.ParseFramework(framework)
	if err != nil {
		return report.Options{}, err
	}
	if confidentiality == "" {
		confidentiality = cfg.Report.Confidentiality
	}
	return report.Options{
		Framework:       f,
		Confidentiality: confidentiality,
		LinesPerPage:    cfg.Report.LinesPerPage,
	}, nil
}

// tagsOptions merges a framework override onto the configured tag defaults.
func tagsOptions(cfg *config.Config, framework string) tags.Options {
	if framework == "" {
		framework = cfg.Tags.Framework
	}
	return tags.Options{
		Framework:       tags.Framework(framework),
		TaxonomyVersion: cfg.Tags.TaxonomyVersion,
	}
}

func loadSections(path string) ([]report.Section, error) {
	if path == "" {
		return nil, nil
	}
	return report.LoadSectionsFile(path)
}

// writeOutput writes to the --out file, or to the command's stdout when
// no file is given. A failed file write leaves no partial file.
func writeOutput(cmd *cobra.Command, out string, write func(io.Writer) error) error {
	if out == "" {
		return write(cmd.OutOrStdout())
	}
	if err := render.WriteFile(out, write); err != nil {
		return err
	}
	cmd.PrintErrf("Wrote %s\n", out)
	return nil
}

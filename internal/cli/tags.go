package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/ghgfocus/internal/render/tags"
)

// ErrTagValidation is returned by "tags validate" when the document has issues.
var ErrTagValidation = errors.New("tag document is not valid")

// tagsParams holds the flags of "tags render".
type tagsParams struct {
	inventory    inventoryParams
	inline       bool
	out          string
	sectionsFile string
	framework    string
}

// newTagsCmd creates the tags command group.
func newTagsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tags", Short: "Structured disclosure tagging commands"}
	cmd.AddCommand(NewTagsRenderCmd(), NewTagsValidateCmd())
	return cmd
}

// NewTagsRenderCmd creates the "tags render" command. The default output is
// a standalone instance document; --inline embeds the facts in XHTML with
// the report narrative.
func NewTagsRenderCmd() *cobra.Command {
	var params tagsParams

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render machine-readable disclosure tags",
		Example: `  # Instance document under the configured taxonomy
  ghgfocus tags render --company acme --from 2024-01-01 --to 2024-12-31 --out tags.xml

  # Inline XHTML for ESRS with narrative sections
  ghgfocus tags render --company acme --from 2024-01-01 --to 2024-12-31 \
    --framework esrs --inline --sections sections.yaml --out tags.xhtml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTagsRender(cmd, &params)
		},
	}

	addInventoryFlags(cmd, &params.inventory)
	cmd.Flags().BoolVar(&params.inline, "inline", false, "embed the tags in XHTML with the report narrative")
	cmd.Flags().StringVar(&params.out, "out", "", "output file (default stdout)")
	cmd.Flags().StringVar(&params.sectionsFile, "sections", "", "YAML file with narrative sections for --inline")
	cmd.Flags().StringVar(&params.framework, "framework", "",
		"taxonomy framework: ifrs-s2, esrs or sb253 (default from config)")
	return cmd
}

func runTagsRender(cmd *cobra.Command, params *tagsParams) error {
	ctx := cmd.Context()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	opts := tagsOptions(svc.cfg, params.framework)
	inv, err := buildInventory(ctx, svc.cfg, svc.store, &params.inventory)
	if err != nil {
		return err
	}

	if !params.inline {
		doc, renderErr := tags.Render(ctx, inv, opts)
		if renderErr != nil {
			return renderErr
		}
		return writeOutput(cmd, params.out, func(w io.Writer) error {
			return tags.WriteXML(w, doc)
		})
	}

	sections, err := loadSections(params.sectionsFile)
	if err != nil {
		return err
	}
	in, err := tags.RenderInline(ctx, sections, inv, opts)
	if err != nil {
		return err
	}
	return writeOutput(cmd, params.out, func(w io.Writer) error {
		return tags.WriteInline(w, in)
	})
}

// NewTagsValidateCmd creates the "tags validate" command. Every issue is
// printed, not just the first.
func NewTagsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a rendered tag document for structural errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			issues := tags.ValidateTags(data)
			if len(issues) == 0 {
				cmd.Printf("%s: valid\n", args[0])
				return nil
			}
			for _, issue := range issues {
				cmd.Printf("%s: %s\n", args[0], issue)
			}
			return fmt.Errorf("%w: %d issue(s)", ErrTagValidation, len(issues))
		},
	}
}

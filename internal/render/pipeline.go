// Package render runs every renderer over one aggregated inventory.
package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/ghgfocus/internal/engine"
	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/logging"
	"github.com/rshade/ghgfocus/internal/render/report"
	"github.com/rshade/ghgfocus/internal/render/tags"
)

// Artifact file names written by WriteAll.
const (
	FileReportHTML = "report.html"
	FileReportText = "report.txt"
	FileWorkbook   = "inventory.xlsx"
	FileTags       = "tags.xml"
	FileInline     = "tags.xhtml"
)

// DefaultMaxParallel bounds concurrent artifact writes.
const DefaultMaxParallel = 4

// Options configures both renderers.
type Options struct {
	Report report.Options
	Tags   tags.Options
}

// Result holds the rendered documents of one inventory.
type Result struct {
	Inventory *ghg.AggregatedInventory
	Options   Options
	Report    *report.Document
	Tags      *tags.Document
}

// Inline combines the tag document with the report narrative.
func (r *Result) Inline() *tags.Inline {
	return &tags.Inline{Tags: r.Tags, Report: r.Report}
}

// Pipeline renders and writes all output formats.
type Pipeline struct {
	// MaxParallel bounds concurrent writes in WriteAll. Zero uses DefaultMaxParallel.
	MaxParallel int
}

// RenderAll reconciles inv once and then renders the report and the tag
// document concurrently. Neither document is returned unless both render.
func (p *Pipeline) RenderAll(
	ctx context.Context,
	sections []report.Section,
	inv *ghg.AggregatedInventory,
	opts Options,
) (*Result, error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "render").
		Str("operation", "render_all").
		Logger()

	if err := engine.Reconcile(inv); err != nil {
		logger.Error().Err(err).Msg("inventory does not reconcile")
		return nil, err
	}

	res := &Result{Inventory: inv, Options: opts}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := report.Render(gctx, sections, inv, opts.Report)
		if err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
		res.Report = doc
		return nil
	})
	g.Go(func() error {
		doc, err := tags.Render(gctx, inv, opts.Tags)
		if err != nil {
			return fmt.Errorf("rendering tags: %w", err)
		}
		res.Tags = doc
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debug().
		Int("pages", len(res.Report.Pages)).
		Int("facts", len(res.Tags.Facts)).
		Msg("rendered all outputs")
	return res, nil
}

// WriteAll writes every artifact of res into dir and returns the paths in a
// fixed order. A file whose write fails is removed.
func (p *Pipeline) WriteAll(ctx context.Context, dir string, res *Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{FileReportHTML, func(w io.Writer) error { return report.WriteHTML(w, res.Report) }},
		{FileReportText, func(w io.Writer) error { return report.WriteText(w, res.Report) }},
		{FileWorkbook, func(w io.Writer) error { return report.WriteWorkbook(w, res.Inventory, res.Options.Report) }},
		{FileTags, func(w io.Writer) error { return tags.WriteXML(w, res.Tags) }},
		{FileInline, func(w io.Writer) error { return tags.WriteInline(w, res.Inline()) }},
	}

	limit := p.MaxParallel
	if limit <= 0 {
		limit = DefaultMaxParallel
	}
	paths := make([]string, len(writers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, wr := range writers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, wr.name)
			if err := WriteFile(path, wr.write); err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info().
		Str("component", "render").
		Str("dir", dir).
		Int("files", len(paths)).
		Msg("artifacts written")
	return paths, nil
}

// WriteFile creates path and fills it with write. A failed write leaves no file behind.
func WriteFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("closing %s: %w", path, closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

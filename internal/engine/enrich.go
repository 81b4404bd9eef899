package engine

import (
	"context"
	"fmt"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/logging"
)

// FactorSource finds an emission factor for a record.
type FactorSource interface {
	Lookup(rec *ghg.Record) (ghg.Factor, bool)
}

// EnrichResult is the outcome of attaching factors to a batch of records.
type EnrichResult struct {
	// Records holds every input record in input order, enriched where possible.
	Records []ghg.Record
	// Enriched counts records moved from pending to calculated.
	Enriched int
	// Issues has one error per record left pending.
	Issues []error
}

// Enrich attaches a factor from source to every pending record. Records
// already calculated pass through untouched, and records with no usable
// factor stay pending and are reported in Issues. The input slice is not
// modified.
func Enrich(ctx context.Context, records []ghg.Record, source FactorSource) *EnrichResult {
	logger := logging.FromContext(ctx).With().
		Str("component", "engine").
		Str("operation", "enrich").
		Logger()

	res := &EnrichResult{Records: make([]ghg.Record, len(records))}
	copy(res.Records, records)

	for i := range res.Records {
		rec := &res.Records[i]
		if rec.Status != ghg.StatusPendingFactor {
			continue
		}

		f, ok := source.Lookup(rec)
		if !ok {
			res.Issues = append(res.Issues, &ghg.RecordError{
				Kind:            ghg.ErrPendingFactor,
				SourceReference: rec.SourceReference,
				Err: fmt.Errorf("no factor for scope %d %s in %s",
					int(rec.Scope), rec.Category, rec.ActivityUnit),
			})
			continue
		}
		if err := rec.AttachFactor(f); err != nil {
			res.Issues = append(res.Issues, err)
			continue
		}
		res.Enriched++
	}

	logger.Info().
		Int("records", len(records)).
		Int("enriched", res.Enriched).
		Int("still_pending", len(res.Issues)).
		Msg("factor enrichment finished")
	return res
}

package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ghgfocus/internal/ghg"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func year2024() ghg.Period {
	return ghg.Period{Start: date("2024-01-01"), End: date("2024-12-31")}
}

// pending builds a pending record dated on day.
func pending(scope ghg.Scope, category string, amount, unit, day string) ghg.Record {
	rec := ghg.Record{
		ID:             ghg.NewID(),
		Scope:          scope,
		Category:       category,
		ActivityAmount: dec(amount),
		ActivityUnit:   unit,
		PeriodStart:    date(day),
		PeriodEnd:      date(day),
		DataQuality:    ghg.QualityMeasured,
		Provenance:     ghg.ProvenanceManual,
		Status:         ghg.StatusPendingFactor,
	}
	if scope == ghg.Scope2 {
		rec.CalculationMethod = ghg.MethodLocationBased
	}
	return rec
}

// calculated builds a record whose total equals tonnes.
func calculated(tb testing.TB, scope ghg.Scope, category string, method ghg.CalculationMethod, tonnes, day string) ghg.CalculatedRecord {
	tb.Helper()
	rec := pending(scope, category, tonnes, "kwh", day)
	rec.CalculationMethod = method
	require.NoError(tb, rec.AttachFactor(ghg.Factor{Value: decimal.NewFromInt(1), Unit: "t_co2e_per_kwh", Source: "test"}))
	c, err := rec.Calculated()
	require.NoError(tb, err)
	return c
}

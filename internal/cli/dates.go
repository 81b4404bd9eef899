package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/rshade/ghgfocus/internal/ghg"
)

// ParseDate parses str as a date in either "YYYY-MM-DD" or RFC3339 format.
// The result is truncated to the UTC day.
func ParseDate(str string) (time.Time, error) {
	layouts := []string{
		time.DateOnly,
		time.RFC3339,
	}

	var parseErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, str)
		if err == nil {
			y, m, d := t.UTC().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
		parseErr = err
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s (use YYYY-MM-DD or RFC3339): %w", str, parseErr)
}

// ParsePeriod parses an inclusive from/to pair into a reporting period.
func ParsePeriod(fromStr, toStr string) (ghg.Period, error) {
	if fromStr == "" || toStr == "" {
		return ghg.Period{}, errors.New("both --from and --to are required")
	}
	from, err := ParseDate(fromStr)
	if err != nil {
		return ghg.Period{}, fmt.Errorf("parsing 'from' date: %w", err)
	}
	to, err := ParseDate(toStr)
	if err != nil {
		return ghg.Period{}, fmt.Errorf("parsing 'to' date: %w", err)
	}
	p := ghg.Period{Start: from, End: to}
	if validErr := p.Validate(); validErr != nil {
		return ghg.Period{}, validErr
	}
	return p, nil
}

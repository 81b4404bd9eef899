package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/logging"
)

// StaticAdapter serves records held in memory, keyed by integration id.
// It backs manual entry and tests. Integrations marked unavailable fail every
// fetch with ghg.ErrIntegrationUnavailable.
type StaticAdapter struct {
	mu          sync.RWMutex
	records     map[string][]RawRecord
	unavailable map[string]bool
}

// NewStaticAdapter returns an empty StaticAdapter.
func NewStaticAdapter() *StaticAdapter {
	return &StaticAdapter{
		records:     make(map[string][]RawRecord),
		unavailable: make(map[string]bool),
	}
}

// Add appends records for an integration.
func (a *StaticAdapter) Add(integrationID string, records ...RawRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[integrationID] = append(a.records[integrationID], records...)
}

// SetUnavailable marks an integration as unreachable or reachable again.
func (a *StaticAdapter) SetUnavailable(integrationID string, down bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unavailable[integrationID] = down
}

// FetchActivityRecords returns the integration's records inside the range
// whose type passes the filter.
func (a *StaticAdapter) FetchActivityRecords(
	ctx context.Context,
	creds Credentials,
	dateRange DateRange,
	dataTypes []DataType,
) ([]RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.unavailable[creds.IntegrationID] {
		return nil, &ghg.IntegrationUnavailableError{IntegrationID: creds.IntegrationID}
	}

	var out []RawRecord
	for _, r := range a.records[creds.IntegrationID] {
		if !wantType(dataTypes, r.Type) || !dateRange.Contains(r.Date) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseRawRecords decodes a JSON array of raw records.
func ParseRawRecords(ctx context.Context, data []byte) ([]RawRecord, error) {
	log := logging.FromContext(ctx)
	log.Debug().
		Str("component", "ingest").
		Str("operation", "parse_records").
		Int("data_size_bytes", len(data)).
		Msg("parsing raw records")

	var records []RawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing raw records JSON: %w", err)
	}
	return records, nil
}

// LoadRawRecordsFile reads a JSON array of raw records, e.g. a manual entry export.
func LoadRawRecordsFile(ctx context.Context, path string) ([]RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.FromContext(ctx).Error().
			Str("component", "ingest").
			Err(err).
			Str("path", path).
			Msg("failed to read raw records file")
		return nil, fmt.Errorf("reading raw records file: %w", err)
	}
	return ParseRawRecords(ctx, data)
}

// FileAdapter serves the JSON records file at Credentials.Path.
type FileAdapter struct{}

// FetchActivityRecords loads the file and filters it like StaticAdapter.
// A missing or unreadable file makes the integration unavailable.
func (FileAdapter) FetchActivityRecords(
	ctx context.Context,
	creds Credentials,
	dateRange DateRange,
	dataTypes []DataType,
) ([]RawRecord, error) {
	records, err := LoadRawRecordsFile(ctx, creds.Path)
	if err != nil {
		return nil, &ghg.IntegrationUnavailableError{IntegrationID: creds.IntegrationID, Err: err}
	}
	out := records[:0]
	for _, r := range records {
		if wantType(dataTypes, r.Type) && dateRange.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

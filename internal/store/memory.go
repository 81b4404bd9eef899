package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rshade/ghgfocus/internal/ghg"
)

// Memory is an in-process Store.
type Memory struct {
	mu         sync.RWMutex
	records    map[string]ghg.Record
	runs       map[string]Run
	watermarks map[string]time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		records:    make(map[string]ghg.Record),
		runs:       make(map[string]Run),
		watermarks: make(map[string]time.Time),
	}
}

// SaveRecords inserts records, rejecting the whole batch on any duplicate id.
func (m *Memory) SaveRecords(ctx context.Context, records []ghg.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(records)
}

// insertLocked checks the whole batch before writing any of it.
func (m *Memory) insertLocked(records []ghg.Record) error {
	seen := make(map[string]bool, len(records))
	for i := range records {
		id := records[i].ID
		if _, ok := m.records[id]; ok || seen[id] || id == "" {
			return fmt.Errorf("%w: record %q", ErrDuplicateID, id)
		}
		seen[id] = true
	}
	for _, r := range records {
		m.records[r.ID] = cloneRecord(r)
	}
	return nil
}

// ListRecords returns copies of matching records.
func (m *Memory) ListRecords(ctx context.Context, filter RecordFilter) ([]ghg.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ghg.Record
	for id := range m.records {
		r := m.records[id]
		if filter.Match(&r) {
			out = append(out, cloneRecord(r))
		}
	}
	sortRecords(out)
	return out, nil
}

// UpdateRecord replaces a stored record.
func (m *Memory) UpdateRecord(ctx context.Context, record ghg.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.ID]; !ok {
		return fmt.Errorf("%w: record %q", ErrNotFound, record.ID)
	}
	m.records[record.ID] = cloneRecord(record)
	return nil
}

// CreateRun stores a new run.
func (m *Memory) CreateRun(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("%w: run %q", ErrDuplicateID, run.ID)
	}
	m.runs[run.ID] = cloneRun(run)
	return nil
}

// FinishRun overwrites an in-progress run with its terminal state.
func (m *Memory) FinishRun(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.runs[run.ID]
	if !ok {
		return fmt.Errorf("%w: run %q", ErrNotFound, run.ID)
	}
	if cur.Status != RunInProgress {
		return fmt.Errorf("%w: run %q is %s", ErrRunNotRunning, run.ID, cur.Status)
	}
	m.runs[run.ID] = cloneRun(run)
	return nil
}

// GetRun returns a run by id.
func (m *Memory) GetRun(ctx context.Context, id string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: run %q", ErrNotFound, id)
	}
	return cloneRun(r), nil
}

// ListRuns returns an integration's runs, newest first. An empty id lists all.
func (m *Memory) ListRuns(ctx context.Context, integrationID string) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Run
	for _, r := range m.runs {
		if integrationID == "" || r.IntegrationID == integrationID {
			out = append(out, cloneRun(r))
		}
	}
	sortRuns(out)
	return out, nil
}

// Watermark returns the last imported day.
func (m *Memory) Watermark(ctx context.Context, companyID, integrationID string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.watermarks[watermarkKey(companyID, integrationID)]
	return t, ok, nil
}

// CommitImport saves records and advances the watermark under one lock.
func (m *Memory) CommitImport(
	ctx context.Context,
	companyID, integrationID string,
	records []ghg.Record,
	through time.Time,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.insertLocked(records); err != nil {
		return err
	}
	key := watermarkKey(companyID, integrationID)
	if cur, ok := m.watermarks[key]; !ok || through.After(cur) {
		m.watermarks[key] = through.UTC()
	}
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func watermarkKey(companyID, integrationID string) string {
	return companyID + "\x00" + integrationID
}

// Package store persists canonical emission records and sync run history.
//
// Memory keeps everything in process and is the default; SQLite keeps the
// same data in a single database file. Both satisfy RecordStore and RunStore
// with identical semantics.
package store

import (
	"context"
	"slices"
	"time"

	"github.com/rshade/ghgfocus/internal/ghg"
)

type constError string

func (e constError) Error() string { return string(e) }

// Store errors.
const (
	ErrNotFound      = constError("not found")
	ErrDuplicateID   = constError("duplicate id")
	ErrRunNotRunning = constError("run is not in progress")
)

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

// Run states. Completed and failed are terminal.
const (
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// Run is the audit record of one sync run.
type Run struct {
	ID            string         `json:"id"`
	CompanyID     string         `json:"company_id"`
	IntegrationID string         `json:"integration_id"`
	SyncType      string         `json:"sync_type"`
	From          time.Time      `json:"from"`
	To            time.Time      `json:"to"`
	Status        RunStatus      `json:"status"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at,omitzero"`
	Imported      int            `json:"imported"`
	Pending       int            `json:"pending"`
	Unmapped      int            `json:"unmapped"`
	Failed        int            `json:"failed"`
	ByType        map[string]int `json:"by_type,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
}

// RecordFilter narrows ListRecords. Zero fields match everything.
type RecordFilter struct {
	OwnerID       string
	IntegrationID string
	SyncRunID     string
	Scope         ghg.Scope
	Status        *ghg.Status
	// From and To keep records whose period starts inside [From, To].
	From time.Time
	To   time.Time
}

// Match reports whether rec passes the filter.
func (f RecordFilter) Match(rec *ghg.Record) bool {
	switch {
	case f.OwnerID != "" && rec.OwnerID != f.OwnerID,
		f.IntegrationID != "" && rec.IntegrationID != f.IntegrationID,
		f.SyncRunID != "" && rec.SyncRunID != f.SyncRunID,
		f.Scope != 0 && rec.Scope != f.Scope,
		f.Status != nil && rec.Status != *f.Status,
		!f.From.IsZero() && rec.PeriodStart.Before(f.From),
		!f.To.IsZero() && rec.PeriodStart.After(f.To):
		return false
	default:
		return true
	}
}

// RecordStore holds canonical records.
type RecordStore interface {
	// SaveRecords inserts all records or none of them.
	SaveRecords(ctx context.Context, records []ghg.Record) error
	// ListRecords returns matching records ordered by period start, then id.
	ListRecords(ctx context.Context, filter RecordFilter) ([]ghg.Record, error)
	// UpdateRecord replaces an existing record by id.
	UpdateRecord(ctx context.Context, record ghg.Record) error
}

// RunStore holds sync runs and per-integration import watermarks.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	// FinishRun writes a terminal state over a run that is in progress.
	FinishRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns an integration's runs, newest first.
	ListRuns(ctx context.Context, integrationID string) ([]Run, error)
	// Watermark is the last day imported for a company and integration.
	Watermark(ctx context.Context, companyID, integrationID string) (time.Time, bool, error)
}

// Store is both a RecordStore and a RunStore.
type Store interface {
	RecordStore
	RunStore
	// CommitImport saves records and advances the company's watermark for
	// integrationID to through as one unit: either both happen or neither.
	// The watermark never moves backwards.
	CommitImport(ctx context.Context, companyID, integrationID string, records []ghg.Record, through time.Time) error
	Close() error
}

func sortRecords(records []ghg.Record) {
	slices.SortStableFunc(records, func(a, b ghg.Record) int {
		if c := a.PeriodStart.Compare(b.PeriodStart); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
}

func sortRuns(runs []Run) {
	slices.SortStableFunc(runs, func(a, b Run) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		default:
			return 0
		}
	})
}

func cloneRecord(r ghg.Record) ghg.Record {
	if r.Calculation != nil {
		c := *r.Calculation
		r.Calculation = &c
	}
	if r.Spend != nil {
		s := *r.Spend
		r.Spend = &s
	}
	return r
}

func cloneRun(r Run) Run {
	if r.ByType != nil {
		m := make(map[string]int, len(r.ByType))
		for k, v := range r.ByType {
			m[k] = v
		}
		r.ByType = m
	}
	r.Errors = slices.Clone(r.Errors)
	return r
}

// Package syncer runs sync jobs that pull activity data from connected
// integrations into the record store.
//
// A run is keyed by company, integration and date range. Runs against the
// same integration are serialized through a Locker while runs against
// different integrations proceed in parallel. Every run is persisted as
// in_progress before any external call and always reaches completed or
// failed, including when the adapter errors or panics.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/ghgfocus/internal/config"
	"github.com/rshade/ghgfocus/internal/engine"
	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/ingest"
	"github.com/rshade/ghgfocus/internal/logging"
	"github.com/rshade/ghgfocus/internal/store"
	"github.com/rshade/ghgfocus/internal/validation"
)

type constError string

func (e constError) Error() string { return string(e) }

// Sync errors.
const (
	ErrSyncInProgress     = constError("sync already in progress")
	ErrUnknownIntegration = constError("unknown integration")
	ErrInvalidRequest     = constError("invalid sync request")
)

// Type selects how a run treats previously imported days.
type Type string

// Sync types.
const (
	// TypeFull imports the whole requested range again. Nothing is deduplicated.
	TypeFull Type = "full"
	// TypeIncremental imports only days after the integration's watermark.
	TypeIncremental Type = "incremental"
)

// Request starts one sync run.
type Request struct {
	CompanyID     string            `validate:"required"`
	IntegrationID string            `validate:"required"`
	Type          Type              `validate:"oneof=full incremental"`
	Range         ingest.DateRange  `validate:"-"`
	DataTypes     []ingest.DataType `validate:"-"`
}

// Validate checks the request fields.
func (r Request) Validate() error {
	var errs []error
	if err := validation.Struct(r); err != nil {
		errs = append(errs, err)
	}
	if err := r.Range.Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, t := range r.DataTypes {
		if !t.Valid() {
			errs = append(errs, fmt.Errorf("unknown data type %q", t))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}
	return nil
}

// RunResult is what a caller gets back from a run: the persisted run plus
// the records routed away from the canonical set.
type RunResult struct {
	Run      store.Run
	Unmapped []ingest.Unmapped
	// Errors are the per-record errors of a completed run, or the cause of a failed one.
	Errors []error
}

// Integrations looks up configured integrations. *config.Config satisfies it.
type Integrations interface {
	Integration(id string) (config.IntegrationConfig, bool)
}

// Service triggers sync runs.
type Service struct {
	integrations Integrations
	adapters     *ingest.AdapterRegistry
	normalizer   *ingest.Normalizer
	store        store.Store
	locker       Locker
	maxParallel  int
	now          func() time.Time
	newID        func() string
	lookupEnv    func(string) (string, bool)
}

// Option configures a Service.
type Option func(*Service)

// WithLocker replaces the default in-process locker.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithMaxParallel bounds how many runs TriggerAll starts at once.
func WithMaxParallel(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// WithClock sets the time source for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEnv sets how integration tokens are read from the environment.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(s *Service) { s.lookupEnv = lookup }
}

// NewService wires a sync service.
func NewService(
	integrations Integrations,
	adapters *ingest.AdapterRegistry,
	normalizer *ingest.Normalizer,
	st store.Store,
	opts ...Option,
) *Service {
	s := &Service{
		integrations: integrations,
		adapters:     adapters,
		normalizer:   normalizer,
		store:        st,
		locker:       NewLocalLocker(),
		maxParallel:  config.DefaultMaxParallel,
		now:          time.Now,
		newID:        ghg.NewID,
		lookupEnv:    os.LookupEnv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger runs one sync and returns its result.
//
// Invalid requests and unknown integrations fail before a run exists. Once
// the run is created, its terminal state is always written: a failed run is
// returned together with the error that failed it. Canonical records are
// committed in a single batch after normalization, so a failed run commits
// nothing.
func (s *Service) Trigger(ctx context.Context, req Request) (res *RunResult, err error) {
	if err = req.Validate(); err != nil {
		return nil, err
	}
	integration, ok := s.integrations.Integration(req.IntegrationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntegration, req.IntegrationID)
	}
	if integration.CompanyID != req.CompanyID {
		return nil, fmt.Errorf("%w: integration %s does not belong to company %s",
			ErrInvalidRequest, req.IntegrationID, req.CompanyID)
	}

	unlock, err := s.locker.Lock(ctx, req.IntegrationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	run := store.Run{
		ID:            s.newID(),
		CompanyID:     req.CompanyID,
		IntegrationID: req.IntegrationID,
		SyncType:      string(req.Type),
		From:          req.Range.From,
		To:            req.Range.To,
		Status:        store.RunInProgress,
		StartedAt:     s.now().UTC(),
	}
	logger := logging.FromContext(ctx).With().
		Str("component", "syncer").
		Str("operation", "trigger").
		Str("run_id", run.ID).
		Str("integration_id", req.IntegrationID).
		Str("company_id", req.CompanyID).
		Logger()

	if createErr := s.store.CreateRun(ctx, run); createErr != nil {
		return nil, fmt.Errorf("creating sync run: %w", createErr)
	}
	logger.Info().Str("sync_type", run.SyncType).Str("range", req.Range.String()).Msg("sync run started")

	result := &RunResult{Run: run}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync run panicked: %v", r)
		}
		s.finish(ctx, result, err)
		res = result
	}()

	return result, s.execute(ctx, req, integration, result)
}

// finish writes the run's terminal state. It runs with a context detached
// from cancellation so a cancelled caller still leaves a terminal run.
func (s *Service) finish(ctx context.Context, result *RunResult, runErr error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "syncer").
		Str("run_id", result.Run.ID).
		Logger()

	run := &result.Run
	run.FinishedAt = s.now().UTC()
	if runErr != nil {
		run.Status = store.RunFailed
		run.Errors = []string{runErr.Error()}
		result.Errors = []error{runErr}
	} else {
		run.Status = store.RunCompleted
	}

	if err := s.store.FinishRun(context.WithoutCancel(ctx), *run); err != nil {
		logger.Error().Err(err).Msg("writing sync run terminal state failed")
		return
	}
	if runErr != nil {
		logger.Error().Err(runErr).Msg("sync run failed")
		return
	}
	logger.Info().
		Int("imported", run.Imported).
		Int("pending", run.Pending).
		Int("unmapped", run.Unmapped).
		Int("failed", run.Failed).
		Msg("sync run completed")
}

func (s *Service) execute(ctx context.Context, req Request, integration config.IntegrationConfig, result *RunResult) error {
	logger := logging.FromContext(ctx).With().
		Str("component", "syncer").
		Str("run_id", result.Run.ID).
		Logger()

	if !integration.Connected {
		return &ghg.IntegrationUnavailableError{
			IntegrationID: integration.ID,
			Err:           errors.New("integration is not connected"),
		}
	}
	adapter, err := s.adapters.Get(integration.SystemType)
	if err != nil {
		return err
	}

	dateRange := req.Range
	if req.Type == TypeIncremental {
		through, ok, wmErr := s.store.Watermark(ctx, req.CompanyID, req.IntegrationID)
		if wmErr != nil {
			return fmt.Errorf("reading watermark: %w", wmErr)
		}
		if ok {
			dateRange = clipAfter(dateRange, through)
		}
		if dateRange.Empty() {
			logger.Info().Time("watermark", through).Msg("requested range already imported")
			return nil
		}
	}

	raws, err := adapter.FetchActivityRecords(ctx, s.credentials(integration), dateRange, req.DataTypes)
	if err != nil {
		if !errors.Is(err, ghg.ErrIntegrationUnavailable) {
			err = &ghg.IntegrationUnavailableError{IntegrationID: integration.ID, Err: err}
		}
		return err
	}
	logger.Debug().Int("raw_records", len(raws)).Str("range", dateRange.String()).Msg("fetched activity records")

	normalized, err := s.normalizer.Normalize(ctx, raws, integration.ID, ingest.Options{
		OwnerID:   req.CompanyID,
		SyncRunID: result.Run.ID,
	})
	if err != nil {
		return err
	}

	commitErr := s.store.CommitImport(ctx, req.CompanyID, req.IntegrationID, normalized.Canonical, dateRange.To)
	if commitErr != nil {
		return fmt.Errorf("committing canonical records: %w", commitErr)
	}

	run := &result.Run
	run.Imported = len(normalized.Canonical)
	run.Pending = normalized.Pending()
	run.Unmapped = len(normalized.Unmapped)
	run.Failed = len(normalized.Failed)
	run.ByType = make(map[string]int, len(normalized.Counts))
	for t, n := range normalized.Counts {
		run.ByType[string(t)] = n
	}
	result.Unmapped = normalized.Unmapped
	result.Errors = normalized.Errors()
	for _, e := range result.Errors {
		run.Errors = append(run.Errors, e.Error())
	}
	return nil
}

func (s *Service) credentials(in config.IntegrationConfig) ingest.Credentials {
	creds := ingest.Credentials{
		IntegrationID: in.ID,
		CompanyID:     in.CompanyID,
		SystemType:    in.SystemType,
		BaseURL:       in.BaseURL,
		Path:          in.Path,
		RateLimit:     in.RateLimit,
	}
	if in.TokenEnv != "" {
		creds.Token, _ = s.lookupEnv(in.TokenEnv)
	}
	return creds
}

// clipAfter drops the days up to and including through from r.
func clipAfter(r ingest.DateRange, through time.Time) ingest.DateRange {
	next := through.AddDate(0, 0, 1)
	if next.After(r.From) {
		r.From = next
	}
	return r
}

// TriggerAll runs requests concurrently, at most maxParallel at a time.
// Results line up with requests; a request that failed before its run was
// created has a nil result. The returned error joins every request's error.
func (s *Service) TriggerAll(ctx context.Context, reqs []Request) ([]*RunResult, error) {
	results := make([]*RunResult, len(reqs))
	errs := make([]error, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.maxParallel)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := s.Trigger(ctx, req)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", req.IntegrationID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

// Runs lists an integration's run history, newest first.
func (s *Service) Runs(ctx context.Context, integrationID string) ([]store.Run, error) {
	return s.store.ListRuns(ctx, integrationID)
}

// Run returns one run by id.
func (s *Service) Run(ctx context.Context, id string) (store.Run, error) {
	return s.store.GetRun(ctx, id)
}

// EnrichResult summarizes an EnrichPending call.
type EnrichResult struct {
	Enriched int
	Pending  int
	Issues   []error
}

// EnrichPending attaches factors to a company's pending records and writes
// back the ones that became calculated. Records without a factor stay pending.
func (s *Service) EnrichPending(ctx context.Context, companyID string, source engine.FactorSource) (*EnrichResult, error) {
	pendingStatus := ghg.StatusPendingFactor
	pending, err := s.store.ListRecords(ctx, store.RecordFilter{OwnerID: companyID, Status: &pendingStatus})
	if err != nil {
		return nil, fmt.Errorf("listing pending records: %w", err)
	}

	enriched := engine.Enrich(ctx, pending, source)
	out := &EnrichResult{Issues: enriched.Issues}
	for i := range enriched.Records {
		rec := enriched.Records[i]
		if rec.Status != ghg.StatusCalculated {
			out.Pending++
			continue
		}
		if updateErr := s.store.UpdateRecord(ctx, rec); updateErr != nil {
			return out, fmt.Errorf("updating record %s: %w", rec.ID, updateErr)
		}
		out.Enriched++
	}

	logging.FromContext(ctx).Info().
		Str("component", "syncer").
		Str("operation", "enrich").
		Str("company_id", companyID).
		Int("enriched", out.Enriched).
		Int("pending", out.Pending).
		Msg("factor enrichment finished")
	return out, nil
}

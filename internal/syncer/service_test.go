package syncer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rshade/ghgfocus/internal/config"
	"github.com/rshade/ghgfocus/internal/factors"
	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/ingest"
	"github.com/rshade/ghgfocus/internal/mapping"
	"github.com/rshade/ghgfocus/internal/store"
	"github.com/rshade/ghgfocus/internal/syncer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func firstQuarter() ingest.DateRange {
	return ingest.DateRange{From: day(time.January, 1), To: day(time.March, 31)}
}

type fixture struct {
	svc     *syncer.Service
	store   *store.Memory
	adapter *ingest.StaticAdapter
}

// newFixture wires a service for company acme with integrations sap-1,
// csv-1 and an unconnected legacy-1, all served by one static adapter.
func newFixture(t *testing.T, opts ...syncer.Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil, opts...)
}

// newFixtureWithStore is newFixture with the service's store wrapped by wrap.
func newFixtureWithStore(t *testing.T, wrap func(*store.Memory) store.Store, opts ...syncer.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	dir := mapping.StaticDirectory{}
	cfg := &config.Config{}
	for _, in := range []config.IntegrationConfig{
		{ID: "sap-1", CompanyID: "acme", SystemType: "static", Connected: true, TokenEnv: "SAP_TOKEN"},
		{ID: "csv-1", CompanyID: "acme", SystemType: "static", Connected: true},
		{ID: "legacy-1", CompanyID: "acme", SystemType: "static"},
	} {
		cfg.Integrations = append(cfg.Integrations, in)
		dir[in.ID] = mapping.Integration{ID: in.ID, CompanyID: in.CompanyID, Connected: in.Connected}
	}

	reg := mapping.NewRegistry(mapping.NewMemory(), dir)
	var rules []mapping.Rule
	for _, id := range []string{"sap-1", "csv-1"} {
		rules = append(rules,
			mapping.Rule{
				IntegrationID:    id,
				SourceFieldType:  mapping.FieldGLAccount,
				SourceFieldValue: "500100",
				TargetScope:      ghg.Scope1,
				TargetCategory:   ghg.CategoryStationaryCombustion,
			},
			mapping.Rule{
				IntegrationID:    id,
				SourceFieldType:  mapping.FieldGLAccount,
				SourceFieldValue: "500200",
				TargetScope:      ghg.Scope1,
				TargetCategory:   ghg.CategoryMobileCombustion,
			},
		)
	}
	res, err := reg.Upsert(ctx, mapping.Caller{CompanyID: "acme"}, rules)
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	adapter := ingest.NewStaticAdapter()
	adapters := ingest.NewAdapterRegistry()
	adapters.Register("static", adapter)

	st := store.NewMemory()
	var svcStore store.Store = st
	if wrap != nil {
		svcStore = wrap(st)
	}
	svc := syncer.NewService(cfg, adapters, ingest.NewNormalizer(reg, 50), svcStore, opts...)
	return &fixture{svc: svc, store: st, adapter: adapter}
}

func diesel(ref string, date time.Time) ingest.RawRecord {
	return ingest.RawRecord{
		Type:            ingest.DataFuel,
		Amount:          decimal.NewFromInt(1000),
		Unit:            "l",
		Date:            date,
		SourceReference: ref,
		Keys:            ingest.SourceKeys{GLAccount: "500200"},
	}
}

func request(integration string, typ syncer.Type, r ingest.DateRange) syncer.Request {
	return syncer.Request{CompanyID: "acme", IntegrationID: integration, Type: typ, Range: r}
}

func countRecords(t *testing.T, f *fixture) int {
	t.Helper()
	recs, err := f.store.ListRecords(context.Background(), store.RecordFilter{OwnerID: "acme"})
	require.NoError(t, err)
	return len(recs)
}

func TestTrigger_Full(t *testing.T) {
	f := newFixture(t)
	f.adapter.Add("sap-1",
		diesel("JE-1", day(time.February, 3)),
		ingest.RawRecord{
			Type:            ingest.DataTravel,
			Amount:          decimal.NewFromInt(420),
			Unit:            "USD",
			Date:            day(time.February, 9),
			SourceReference: "EXP-7",
			Keys:            ingest.SourceKeys{Vendor: "Unknown Travel Co"},
		},
		ingest.RawRecord{
			Type:            ingest.DataFuel,
			Amount:          decimal.NewFromInt(5000),
			Unit:            "USD",
			Date:            day(time.March, 1),
			SourceReference: "JE-2",
			Keys:            ingest.SourceKeys{GLAccount: "500100"},
		},
	)

	res, err := f.svc.Trigger(context.Background(), request("sap-1", syncer.TypeFull, firstQuarter()))
	require.NoError(t, err)
	require.NotNil(t, res)

	run := res.Run
	assert.Equal(t, store.RunCompleted, run.Status)
	assert.Equal(t, 2, run.Imported)
	assert.Equal(t, 2, run.Pending)
	assert.Equal(t, 1, run.Unmapped)
	assert.Equal(t, 0, run.Failed)
	assert.Equal(t, map[string]int{"fuel": 2}, run.ByType)
	assert.False(t, run.FinishedAt.IsZero())
	require.Len(t, res.Unmapped, 1)
	assert.Equal(t, "Unknown Travel Co", res.Unmapped[0].Key.Value)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ghg.ErrMappingNotFound)

	stored, err := f.svc.Run(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, stored.Status)
	assert.Len(t, stored.Errors, 1)

	recs, err := f.store.ListRecords(context.Background(), store.RecordFilter{SyncRunID: run.ID})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "acme", r.OwnerID)
		assert.Equal(t, "sap-1", r.IntegrationID)
	}
}

func TestTrigger_FullDoesNotDeduplicate(t *testing.T) {
	f := newFixture(t)
	f.adapter.Add("sap-1", diesel("JE-1", day(time.January, 15)))

	for range 2 {
		res, err := f.svc.Trigger(context.Background(), request("sap-1", syncer.TypeFull, firstQuarter()))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Run.Imported)
	}
	assert.Equal(t, 2, countRecords(t, f))
}

func TestTrigger_IncrementalIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.adapter.Add("sap-1", diesel("JE-1", day(time.January, 15)), diesel("JE-2", day(time.March, 2)))

	first, err := f.svc.Trigger(context.Background(), request("sap-1", syncer.TypeIncremental, firstQuarter()))
	require.NoError(t, err)
	assert.Equal(t, 2, first.Run.Imported)

	second, err := f.svc.Trigger(context.Background(), request("sap-1", syncer.TypeIncremental, firstQuarter()))
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, second.Run.Status)
	assert.Equal(t, 0, second.Run.Imported)
	assert.Equal(t, 2, countRecords(t, f))
}

func TestTrigger_IncrementalClipsToWatermark(t *testing.T) {
	f := newFixture(t)
	f.adapter.Add("sap-1",
		diesel("JE-1", day(time.January, 15)),
		diesel("JE-2", day(time.February, 15)),
		diesel("JE-3", day(time.March, 15)),
	)

	janFeb := ingest.DateRange{From: day(time.January, 1), To: day(time.February, 29)}
	res, err := f.svc.Trigger(context.Background(), request("sap-1", syncer.TypeIncremental, janFeb))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Run.Imported)

	res, err = f.svc.Trigger(context.Background(), request("sap-1", syncer.TypeIncremental, firstQuarter()))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Run.Imported)

	recs, err := f.store.ListRecords(context.Background(), store.RecordFilter{SyncRunID: res.Run.ID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "JE-3", recs[0].SourceReference)

	// Watermarks are per integration.
	f.adapter.Add("csv-1", diesel("CSV-1", day(time.January, 20)))
	res, err = f.svc.Trigger(context.Background(), request("csv-1", syncer.TypeIncremental, firstQuarter()))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Run.Imported)
}

func TestTrigger_UnavailableCommitsNothing(t *testing.T) {
	tests := []struct {
		name        string
		integration string
		setup       func(*fixture)
	}{
		{
			name:        "adapter unreachable",
			integration: "sap-1",
			setup: func(f *fixture) {
				f.adapter.Add("sap-1", diesel("JE-1", day(time.January, 15)))
				f.adapter.SetUnavailable("sap-1", true)
			},
		},
		{
			name:        "not connected",
			integration: "legacy-1",
			setup: func(f *fixture) {
				f.adapter.Add("legacy-1", diesel("JE-1", day(time.January, 15)))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			res, err := f.svc.Trigger(context.Background(), request(tt.integration, syncer.TypeFull, firstQuarter()))
			require.ErrorIs(t, err, ghg.ErrIntegrationUnavailable)
			require.NotNil(t, res)
			assert.Equal(t, store.RunFailed, res.Run.Status)
			require.Len(t, res.Run.Errors, 1)
			assert.Contains(t, res.Run.Errors[0], tt.integration)

			stored, getErr := f.svc.Run(context.Background(), res.Run.ID)
			require.NoError(t, getErr)
			assert.Equal(t, store.RunFailed, stored.Status)
			assert.Zero(t, countRecords(t, f))
		})
	}
}

// failingCommitStore refuses imports while fail is set.
type failingCommitStore struct {
	*store.Memory
	fail bool
}

func (s *failingCommitStore) CommitImport(
	ctx context.Context, companyID, integrationID string, records []ghg.Record, through time.Time,
) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Memory.CommitImport(ctx, companyID, integrationID, records, through)
}

func TestTrigger_FailedCommitLeavesNothingBehind(t *testing.T) {
	var failing *failingCommitStore
	f := newFixtureWithStore(t, func(m *store.Memory) store.Store {
		failing = &failingCommitStore{Memory: m, fail: true}
		return failing
	})
	f.adapter.Add("sap-1", diesel("JE-1", day(time.January, 15)))
	ctx := context.Background()

	res, err := f.svc.Trigger(ctx, request("sap-1", syncer.TypeIncremental, firstQuarter()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, res)
	assert.Equal(t, store.RunFailed, res.Run.Status)
	assert.Zero(t, countRecords(t, f))
	_, ok, err := f.store.Watermark(ctx, "acme", "sap-1")
	require.NoError(t, err)
	assert.False(t, ok, "a failed run must not advance the watermark")

	// The retry imports the record exactly once.
	failing.fail = false
	res, err = f.svc.Trigger(ctx, request("sap-1", syncer.TypeIncremental, firstQuarter()))
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, res.Run.Status)
	assert.Equal(t, 1, res.Run.Imported)
	assert.Equal(t, 1, countRecords(t, f))
}

type panicAdapter struct{}

func (panicAdapter) FetchActivityRecords(
	context.Context, ingest.Credentials, ingest.DateRange, []ingest.DataType,
) ([]ingest.RawRecord, error) {
	panic("connector bug")
}

func TestTrigger_PanicLeavesFailedRun(t *testing.T) {
	f := newFixture(t)
	adapters := ingest.NewAdapterRegistry()
	adapters.Register("static", panicAdapter{})
	svc := syncer.NewService(&config.Config{Integrations: []config.IntegrationConfig{
		{ID: "sap-1", CompanyID: "acme", SystemType: "static", Connected: true},
	}}, adapters, ingest.NewNormalizer(nil, 0), f.store)

	res, err := svc.Trigger(context.Background(), request("sap-1", syncer.TypeFull, firstQuarter()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connector bug")
	require.NotNil(t, res)

	runs, listErr := svc.Runs(context.Background(), "sap-1")
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunFailed, runs[0].Status)
	assert.Contains(t, runs[0].Errors[0], "connector bug")

	// The lock was released: the next run on the integration proceeds.
	_, err = svc.Trigger(context.Background(), request("sap-1", syncer.TypeFull, firstQuarter()))
	require.Error(t, err)
	runs, listErr = svc.Runs(context.Background(), "sap-1")
	require.NoError(t, listErr)
	assert.Len(t, runs, 2)
}

func TestTrigger_InvalidRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     syncer.Request
		wantErr error
	}{
		{
			name:    "missing company",
			req:     syncer.Request{IntegrationID: "sap-1", Type: syncer.TypeFull, Range: firstQuarter()},
			wantErr: syncer.ErrInvalidRequest,
		},
		{
			name:    "unknown sync type",
			req:     syncer.Request{CompanyID: "acme", IntegrationID: "sap-1", Type: "delta", Range: firstQuarter()},
			wantErr: syncer.ErrInvalidRequest,
		},
		{
			name: "inverted range",
			req: request("sap-1", syncer.TypeFull, ingest.DateRange{
				From: day(time.March, 1), To: day(time.January, 1),
			}),
			wantErr: syncer.ErrInvalidRequest,
		},
		{
			name: "unknown data type",
			req: syncer.Request{
				CompanyID: "acme", IntegrationID: "sap-1", Type: syncer.TypeFull,
				Range: firstQuarter(), DataTypes: []ingest.DataType{"water"},
			},
			wantErr: syncer.ErrInvalidRequest,
		},
		{
			name:    "unknown integration",
			req:     request("netsuite-9", syncer.TypeFull, firstQuarter()),
			wantErr: syncer.ErrUnknownIntegration,
		},
		{
			name: "integration of another company",
			req: syncer.Request{
				CompanyID: "globex", IntegrationID: "sap-1", Type: syncer.TypeFull, Range: firstQuarter(),
			},
			wantErr: syncer.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res, err := f.svc.Trigger(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)

			runs, listErr := f.svc.Runs(context.Background(), "")
			require.NoError(t, listErr)
			assert.Empty(t, runs)
		})
	}
}

// trackingAdapter records the peak number of concurrent fetches per integration.
type trackingAdapter struct {
	mu      sync.Mutex
	active  map[string]int
	peak    map[string]int
	total   int
	peakAll int
}

func (a *trackingAdapter) FetchActivityRecords(
	ctx context.Context, creds ingest.Credentials, _ ingest.DateRange, _ []ingest.DataType,
) ([]ingest.RawRecord, error) {
	a.mu.Lock()
	a.active[creds.IntegrationID]++
	a.total++
	a.peak[creds.IntegrationID] = max(a.peak[creds.IntegrationID], a.active[creds.IntegrationID])
	a.peakAll = max(a.peakAll, a.total)
	a.mu.Unlock()

	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
	}

	a.mu.Lock()
	a.active[creds.IntegrationID]--
	a.total--
	a.mu.Unlock()
	return nil, nil
}

func TestTriggerAll_SerializesPerIntegration(t *testing.T) {
	f := newFixture(t)
	tracker := &trackingAdapter{active: map[string]int{}, peak: map[string]int{}}
	adapters := ingest.NewAdapterRegistry()
	adapters.Register("static", tracker)
	svc := syncer.NewService(&config.Config{Integrations: []config.IntegrationConfig{
		{ID: "sap-1", CompanyID: "acme", SystemType: "static", Connected: true},
		{ID: "csv-1", CompanyID: "acme", SystemType: "static", Connected: true},
	}}, adapters, ingest.NewNormalizer(nil, 0), f.store, syncer.WithMaxParallel(6))

	var reqs []syncer.Request
	for range 3 {
		reqs = append(reqs,
			request("sap-1", syncer.TypeFull, firstQuarter()),
			request("csv-1", syncer.TypeFull, firstQuarter()),
		)
	}

	results, err := svc.TriggerAll(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, store.RunCompleted, res.Run.Status)
	}

	assert.Equal(t, 1, tracker.peak["sap-1"])
	assert.Equal(t, 1, tracker.peak["csv-1"])
	assert.Equal(t, 2, tracker.peakAll, "different integrations run in parallel")

	runs, err := svc.Runs(context.Background(), "sap-1")
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestTriggerAll_JoinsErrors(t *testing.T) {
	f := newFixture(t)
	f.adapter.Add("sap-1", diesel("JE-1", day(time.January, 15)))

	results, err := f.svc.TriggerAll(context.Background(), []syncer.Request{
		request("sap-1", syncer.TypeFull, firstQuarter()),
		request("legacy-1", syncer.TypeFull, firstQuarter()),
		request("nope", syncer.TypeFull, firstQuarter()),
	})
	require.Error(t, err)
	require.ErrorIs(t, err, ghg.ErrIntegrationUnavailable)
	require.ErrorIs(t, err, syncer.ErrUnknownIntegration)

	require.Len(t, results, 3)
	assert.Equal(t, store.RunCompleted, results[0].Run.Status)
	assert.Equal(t, store.RunFailed, results[1].Run.Status)
	assert.Nil(t, results[2])
}

// credsAdapter remembers the credentials of its last call.
type credsAdapter struct {
	mu    sync.Mutex
	creds ingest.Credentials
}

func (a *credsAdapter) FetchActivityRecords(
	_ context.Context, creds ingest.Credentials, _ ingest.DateRange, _ []ingest.DataType,
) ([]ingest.RawRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds = creds
	return nil, nil
}

func TestTrigger_TokenFromEnvironment(t *testing.T) {
	f := newFixture(t)
	capture := &credsAdapter{}
	adapters := ingest.NewAdapterRegistry()
	adapters.Register("static", capture)
	cfg := &config.Config{Integrations: []config.IntegrationConfig{
		{ID: "sap-1", CompanyID: "acme", SystemType: "static", Connected: true, TokenEnv: "SAP_TOKEN", RateLimit: 2},
	}}
	env := map[string]string{"SAP_TOKEN": "s3cret"}
	svc := syncer.NewService(cfg, adapters, ingest.NewNormalizer(nil, 0), f.store,
		syncer.WithEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }))

	_, err := svc.Trigger(context.Background(), request("sap-1", syncer.TypeFull, firstQuarter()))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", capture.creds.Token)
	assert.Equal(t, "acme", capture.creds.CompanyID)
	assert.InDelta(t, 2.0, capture.creds.RateLimit, 0)
}

func TestRuns_NewestFirst(t *testing.T) {
	var mu sync.Mutex
	clock := day(time.April, 1)
	f := newFixture(t, syncer.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}))

	var ids []string
	for range 3 {
		res, err := f.svc.Trigger(context.Background(), request("sap-1", syncer.TypeFull, firstQuarter()))
		require.NoError(t, err)
		ids = append(ids, res.Run.ID)
	}

	runs, err := f.svc.Runs(context.Background(), "sap-1")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
}

func TestEnrichPending(t *testing.T) {
	f := newFixture(t)
	f.adapter.Add("sap-1",
		ingest.RawRecord{
			Type:            ingest.DataFuel,
			Amount:          decimal.NewFromInt(5000),
			Unit:            "USD",
			Date:            day(time.March, 1),
			SourceReference: "JE-2",
			Keys:            ingest.SourceKeys{GLAccount: "500100"},
		},
		diesel("JE-1", day(time.February, 3)),
	)
	_, err := f.svc.Trigger(context.Background(), request("sap-1", syncer.TypeFull, firstQuarter()))
	require.NoError(t, err)

	res, err := f.svc.EnrichPending(context.Background(), "acme", factors.Default())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Enriched)
	assert.Zero(t, res.Pending)
	assert.Empty(t, res.Issues)

	calculated := ghg.StatusCalculated
	recs, err := f.store.ListRecords(context.Background(), store.RecordFilter{Status: &calculated})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	totals := map[string]string{}
	for _, r := range recs {
		totals[r.SourceReference] = r.TotalCO2e().String()
	}
	assert.Equal(t, map[string]string{"JE-1": "2.68787", "JE-2": "1.5"}, totals)

	// A second pass finds nothing left to do.
	res, err = f.svc.EnrichPending(context.Background(), "acme", factors.Default())
	require.NoError(t, err)
	assert.Zero(t, res.Enriched)
}

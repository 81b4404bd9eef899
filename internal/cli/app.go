package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rshade/ghgfocus/internal/config"
	"github.com/rshade/ghgfocus/internal/factors"
	"github.com/rshade/ghgfocus/internal/ingest"
	"github.com/rshade/ghgfocus/internal/mapping"
	"github.com/rshade/ghgfocus/internal/store"
	"github.com/rshade/ghgfocus/internal/syncer"
)

// Integration system types with a built-in adapter.
const (
	SystemCSV  = "csv"
	SystemREST = "rest"
	SystemFile = "file"
)

const restTimeout = 60 * time.Second

// configDirectory exposes configured integrations to the mapping registry.
type configDirectory struct{ cfg *config.Config }

func (d configDirectory) Integration(_ context.Context, id string) (mapping.Integration, bool) {
	in, ok := d.cfg.Integration(id)
	if !ok {
		return mapping.Integration{}, false
	}
	return mapping.Integration{ID: in.ID, CompanyID: in.CompanyID, Connected: in.Connected}, true
}

// loadConfig returns the validated global configuration.
func loadConfig() (*config.Config, error) {
	cfg := config.GetGlobalConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the record and run store selected by the storage section.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		return store.NewSQLite(ctx, cfg.Storage.DSN)
	case "", "memory":
		logger.Warn().Msg("memory storage does not persist between commands; set storage.driver to sqlite")
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// openMappings returns the mapping registry over the persisted rules file.
func openMappings(cfg *config.Config) (*mapping.Registry, error) {
	fs, err := mapping.NewFileStore(cfg.Mapping.RulesFile)
	if err != nil {
		return nil, err
	}
	return mapping.NewRegistry(fs, configDirectory{cfg: cfg}), nil
}

// loadFactors returns the configured factor library or the built-in one.
func loadFactors(ctx context.Context, cfg *config.Config) (*factors.Library, error) {
	if cfg.Factors.LibraryFile == "" {
		return factors.Default(), nil
	}
	return factors.LoadLibrary(ctx, cfg.Factors.LibraryFile)
}

// newAdapters registers the built-in adapters by system type.
func newAdapters() *ingest.AdapterRegistry {
	reg := ingest.NewAdapterRegistry()
	reg.Register(SystemCSV, ingest.CSVAdapter{})
	reg.Register(SystemREST, ingest.RESTAdapter{Client: &http.Client{Timeout: restTimeout}})
	reg.Register(SystemFile, ingest.FileAdapter{})
	return reg
}

// newLocker returns the sync locker for the configured backend and a
// function releasing its connection.
func newLocker(ctx context.Context, cfg *config.Config) (syncer.Locker, func(), error) {
	if cfg.Sync.LockBackend != "redis" {
		return syncer.NewLocalLocker(), func() {}, nil
	}
	client, err := syncer.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("closing redis client")
		}
	}
	return syncer.NewRedisLocker(client, cfg.Sync.LockTTL, 0), closeFn, nil
}

// services bundles what the sync and inventory commands share.
type services struct {
	cfg      *config.Config
	store    store.Store
	mappings *mapping.Registry
	closers  []func()
}

// openServices loads configuration and opens the store and mapping registry.
func openServices(ctx context.Context) (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	reg, err := openMappings(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &services{cfg: cfg, store: st, mappings: reg}, nil
}

// syncService wires a sync service over the opened store.
func (s *services) syncService(ctx context.Context, lookupEnv func(string) (string, bool)) (*syncer.Service, error) {
	locker, release, err := newLocker(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, release)

	normalizer := ingest.NewNormalizer(s.mappings, s.cfg.Sync.BatchSize)
	return syncer.NewService(s.cfg, newAdapters(), normalizer, s.store,
		syncer.WithLocker(locker),
		syncer.WithMaxParallel(s.cfg.Sync.MaxParallel),
		syncer.WithEnv(lookupEnv),
	), nil
}

// Close releases every resource opened by openServices.
func (s *services) Close() error {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	if err := s.store.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"geoprobe/internal/cidrsource"
	"geoprobe/internal/config"
	"geoprobe/internal/database"
	"geoprobe/internal/geolite"
	"geoprobe/internal/jobs/batch"
	jobruntime "geoprobe/internal/jobs/runtime"
	"geoprobe/internal/lookup"
	"geoprobe/internal/support"
)

// Services holds everything a batch needs, built once per process.
type Services struct {
	Source       cidrsource.Source
	Resolver     lookup.Resolver
	Orchestrator *batch.Orchestrator

	lookupCfg config.LookupConfig
	closers   []func() error
}

type Options struct {
	// UpdateGeoLite re-downloads the GeoLite databases even when they exist.
	UpdateGeoLite bool
}

// Setup reads the settings file, opens the backing stores the configured
// source needs and builds the orchestrator.
func Setup(ctx context.Context, opts Options) (*Services, error) {
	if err := config.ReadSettings(); err != nil {
		return nil, err
	}
	cfg := config.GetConfig()

	svc := &Services{lookupCfg: cfg.Lookup}

	switch cfg.Source.Kind {
	case config.SourceDatabase:
		if _, err := database.SetupDB(); err != nil {
			return nil, fmt.Errorf("failed to set up database: %w", err)
		}
		svc.closers = append(svc.closers, database.CloseDB)
	case config.SourceRedis:
		svc.closers = append(svc.closers, support.CloseRedisClient)
	}

	source, err := cidrsource.New(cfg.Source)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Source = source

	if cfg.Lookup.Provider == config.ProviderGeoLite {
		if err := prepareGeoLite(ctx, cfg.Lookup, opts.UpdateGeoLite); err != nil {
			svc.Close()
			return nil, err
		}
	}

	resolver, err := lookup.New(cfg.Lookup)
	if err != nil {
		svc.Close()
		return nil, err
	}
	if closer, ok := resolver.(io.Closer); ok {
		svc.closers = append(svc.closers, closer.Close)
	}
	svc.Resolver = resolver

	svc.Orchestrator = batch.NewOrchestrator(cidrsource.Shared(source), resolver, batch.FromConfig(cfg)...)

	log.Info("Services ready",
		"source", cfg.Source.Kind,
		"provider", cfg.Lookup.Provider,
		"concurrency", cfg.Lookup.Concurrency)
	return svc, nil
}

func prepareGeoLite(ctx context.Context, cfg config.LookupConfig, force bool) error {
	updater := geolite.NewUpdater(cfg.GeoLiteLicenseKey)

	if force {
		if _, err := updater.UpdateDatabases(ctx, cfg); err != nil {
			return fmt.Errorf("update GeoLite databases: %w", err)
		}
		return nil
	}

	_, err := updater.EnsureDatabases(ctx, cfg)
	if errors.Is(err, geolite.ErrNoLicenseKey) {
		log.Warn("GeoLite databases missing and no license key configured", "country", cfg.GeoLiteCountryPath, "asn", cfg.GeoLiteASNPath)
		return nil
	}
	return err
}

// StartBackground launches the long-running routines used while serving.
func (s *Services) StartBackground(ctx context.Context) {
	reloader, ok := s.Resolver.(*lookup.GeoLiteResolver)
	if !ok || s.lookupCfg.RefreshInterval() <= 0 {
		return
	}

	updater := geolite.NewUpdater(s.lookupCfg.GeoLiteLicenseKey)
	go jobruntime.StartGeoLiteUpdateRoutine(ctx, s.lookupCfg.RefreshInterval(), updater, s.lookupCfg, reloader)
}

// ImportRanges copies a ranges document from path into the configured source.
// Only redis and database sources accept imports.
func (s *Services) ImportRanges(ctx context.Context, path string) (int, error) {
	store, ok := s.Source.(interface {
		Store(ctx context.Context, ranges []string) error
	})
	if !ok {
		return 0, fmt.Errorf("source %T does not accept imports", s.Source)
	}

	ranges, err := cidrsource.FileSource{Path: path}.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := store.Store(ctx, ranges); err != nil {
		return 0, err
	}
	return len(ranges), nil
}

// Close releases the resources opened by Setup in reverse order.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

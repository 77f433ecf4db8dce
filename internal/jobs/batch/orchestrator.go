package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"geoprobe/internal/cidrsource"
	"geoprobe/internal/config"
	"geoprobe/internal/domain"
	"geoprobe/internal/generator"
	"geoprobe/internal/lookup"
)

// Orchestrator draws a batch of unique addresses and resolves them concurrently.
// It holds no per-batch state and is safe for concurrent use.
type Orchestrator struct {
	source        cidrsource.Source
	resolver      lookup.Resolver
	concurrency   int
	generatorOpts []generator.Option
}

type Option func(*Orchestrator)

// WithConcurrency caps in-flight lookups. Zero or less means one goroutine per address.
func WithConcurrency(limit int) Option {
	return func(o *Orchestrator) {
		o.concurrency = limit
	}
}

// WithGeneratorOptions is applied to the generator built for every batch.
func WithGeneratorOptions(opts ...generator.Option) Option {
	return func(o *Orchestrator) {
		o.generatorOpts = append(o.generatorOpts, opts...)
	}
}

func NewOrchestrator(source cidrsource.Source, resolver lookup.Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:   source,
		resolver: resolver,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateAndFetch returns count records in generation order. Only loading the
// ranges and generating addresses can fail; lookup problems become placeholder records.
func (o *Orchestrator) GenerateAndFetch(ctx context.Context, count int) ([]domain.IPRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ranges, err := o.loadRanges(ctx)
	if err != nil {
		return nil, err
	}

	addresses, err := generator.New(o.generatorOpts...).Generate(count, ranges)
	if err != nil {
		return nil, fmt.Errorf("generate addresses: %w", err)
	}

	start := time.Now()
	log.Debug("Resolving address batch", "count", len(addresses), "ranges", len(ranges))

	records := make([]domain.IPRecord, len(addresses))

	var g errgroup.Group
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}

	for i, ip := range addresses {
		g.Go(func() error {
			records[i] = o.resolve(ctx, ip)
			return nil
		})
	}
	_ = g.Wait()

	logSummary(records, time.Since(start))
	return records, nil
}

func (o *Orchestrator) loadRanges(ctx context.Context) ([]string, error) {
	ranges, err := o.source.Load(ctx)
	switch {
	case errors.Is(err, generator.ErrNoAddressSource):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%w: %w", generator.ErrNoAddressSource, err)
	case len(ranges) == 0:
		return nil, generator.ErrNoAddressSource
	}
	return ranges, nil
}

func (o *Orchestrator) resolve(ctx context.Context, ip string) (record domain.IPRecord) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Lookup panicked", "ip", ip, "panic", r)
			record = domain.NetworkErrorRecord(ip)
		}
	}()

	if err := ctx.Err(); err != nil {
		log.Warn("Lookup skipped", "ip", ip, "error", err)
		return domain.NetworkErrorRecord(ip)
	}
	return o.resolver.Resolve(ctx, ip)
}

func logSummary(records []domain.IPRecord, elapsed time.Duration) {
	statusCounts := make(map[domain.RecordStatus]int)
	for _, record := range records {
		statusCounts[record.Status]++
	}

	complete := statusCounts[domain.StatusOK]
	log.Info("Address batch resolved",
		"count", len(records),
		"complete", complete,
		"placeholders", len(records)-complete,
		"network_errors", statusCounts[domain.StatusNetworkError],
		"duration", elapsed)
}

// GenerateAndFetchIPInfos runs one batch against the source and resolver
// described by the current configuration.
func GenerateAndFetchIPInfos(ctx context.Context, count int) ([]domain.IPRecord, error) {
	cfg := config.GetConfig()

	source, err := cidrsource.New(cfg.Source)
	if err != nil {
		return nil, err
	}

	resolver, err := lookup.New(cfg.Lookup)
	if err != nil {
		return nil, err
	}
	if closer, ok := resolver.(io.Closer); ok {
		defer closer.Close()
	}

	return NewOrchestrator(source, resolver, FromConfig(cfg)...).GenerateAndFetch(ctx, count)
}

// FromConfig translates the generator and lookup settings into orchestrator options.
func FromConfig(cfg config.Config) []Option {
	return []Option{
		WithConcurrency(cfg.Lookup.Concurrency),
		WithGeneratorOptions(generator.WithMaxAttempts(cfg.Generator.MaxAttempts)),
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"modscout/config"
	"modscout/internal/metrics"
	"modscout/logger"
	"modscout/models"
	"modscout/processor"
)

// MarketProvider serves the item directory and per-item order books.
type MarketProvider interface {
	DirectoryProvider
	processor.OrderBookFetcher
}

const (
	StageMatched   = "matched"
	StageOrderBook = "order_book"
	StageDone      = "done"
)

// ProgressEvent is emitted while a search runs, for front ends that stream.
type ProgressEvent struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage"`
	Mod   string `json:"mod,omitempty"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
	Error string `json:"error,omitempty"`
}

type Pipeline struct {
	config     *config.Config
	catalog    CatalogProvider
	market     MarketProvider
	aggregator *processor.Aggregator
	aliases    map[string]string
	log        *logger.Log

	mu       sync.RWMutex
	snapshot *Snapshot
	refresh  singleflight.Group
}

func New(cfg *config.Config, catalog CatalogProvider, market MarketProvider, aliases map[string]string) *Pipeline {
	log := logger.GetLogger()

	copied := make(map[string]string, len(aliases))
	for k, v := range aliases {
		copied[k] = v
	}

	p := &Pipeline{
		config:     cfg,
		catalog:    catalog,
		market:     market,
		aggregator: processor.NewAggregator(cfg, market),
		aliases:    copied,
		log:        log,
	}

	log.WithComponent("pipeline").WithFields(logger.Fields{
		"aliases":      len(copied),
		"snapshot_ttl": cfg.Source.SnapshotTTL,
	}).Info("pipeline initialized")

	return p
}

// Aliases returns a copy of the location alias table.
func (p *Pipeline) Aliases() map[string]string {
	out := make(map[string]string, len(p.aliases))
	for k, v := range p.aliases {
		out[k] = v
	}
	return out
}

// Snapshot returns the catalog and item directory for one run. With a positive
// source.snapshot_ttl a recent snapshot is reused and concurrent refreshes share
// one load; otherwise every call fetches its own.
func (p *Pipeline) Snapshot(ctx context.Context) (*Snapshot, error) {
	ttl := p.config.Source.SnapshotTTL
	if ttl <= 0 {
		return loadSnapshot(ctx, p.catalog, p.market, p.log)
	}

	p.mu.RLock()
	snap := p.snapshot
	p.mu.RUnlock()
	if snap.fresh(ttl, time.Now()) {
		return snap, nil
	}

	// The shared load outlives any single caller; each caller still honours its own ctx.
	ch := p.refresh.DoChan("snapshot", func() (interface{}, error) {
		loaded, err := loadSnapshot(context.WithoutCancel(ctx), p.catalog, p.market, p.log)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.snapshot = loaded
		p.mu.Unlock()
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Search runs one search over already-tokenized input.
func (p *Pipeline) Search(ctx context.Context, tokens []string) (*models.SearchResult, error) {
	return p.run(ctx, strings.Join(tokens, ", "), tokens, nil)
}

// SearchQuery tokenizes raw the way every front end does and searches.
func (p *Pipeline) SearchQuery(ctx context.Context, raw string) (*models.SearchResult, error) {
	return p.run(ctx, strings.TrimSpace(raw), processor.SplitQuery(raw), nil)
}

// SearchQueryWithProgress is SearchQuery that also reports each stage to progress.
func (p *Pipeline) SearchQueryWithProgress(ctx context.Context, raw string, progress func(ProgressEvent)) (*models.SearchResult, error) {
	return p.run(ctx, strings.TrimSpace(raw), processor.SplitQuery(raw), progress)
}

func (p *Pipeline) run(ctx context.Context, query string, raw []string, progress func(ProgressEvent)) (*models.SearchResult, error) {
	runID := uuid.NewString()
	start := time.Now()
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"run_id": runID})

	emit := func(ev ProgressEvent) {
		if progress != nil {
			ev.RunID = runID
			progress(ev)
		}
	}

	tokens := processor.NormalizeTokens(raw, p.aliases)
	if len(tokens) == 0 {
		metrics.ObserveSearch(metrics.OutcomeNoInput, 0)
		return nil, processor.ErrNoInputLocations
	}
	log = log.WithFields(logger.Fields{"tokens": tokens})

	snap, err := p.Snapshot(ctx)
	if err != nil {
		metrics.ObserveSearch(metrics.OutcomeError, 0)
		log.WithError(err).Error("failed to load snapshot")
		return nil, err
	}

	matches, err := processor.Match(tokens, snap.Catalog)
	if err != nil {
		metrics.ObserveSearch(metrics.OutcomeNoInput, 0)
		return nil, err
	}
	if len(matches) == 0 {
		metrics.ObserveSearch(metrics.OutcomeNoMatch, 0)
		log.Info("no mods matched")
		return nil, ErrNoMatchingMods
	}

	result := &models.SearchResult{
		RunID:      runID,
		Query:      query,
		Tokens:     tokens,
		Mods:       matches,
		Unresolved: []string{},
		Ambiguous:  []string{},
		Failed:     map[string]string{},
		StartedAt:  start,
	}

	var jobs []processor.AggregateJob
	for _, name := range matches.Names() {
		slug, ok := snap.Directory.Resolve(name)
		if !ok {
			result.Unresolved = append(result.Unresolved, name)
			log.WithFields(logger.Fields{"mod": name}).Warn("mod is not listed on the marketplace")
			continue
		}
		if snap.Directory.Ambiguous(name) {
			result.Ambiguous = append(result.Ambiguous, name)
			log.WithFields(logger.Fields{"mod": name, "slug": slug}).Warn("marketplace lists the mod more than once, using the first entry")
		}
		jobs = append(jobs, processor.AggregateJob{ModName: name, Slug: slug, Locations: matches[name]})
	}
	metrics.AddUnresolved(len(result.Unresolved))
	emit(ProgressEvent{Stage: StageMatched, Done: 0, Total: len(jobs)})

	done := 0
	report := p.aggregator.AggregateAll(ctx, jobs, func(outcome models.AggregateOutcome) {
		done++
		ev := ProgressEvent{Stage: StageOrderBook, Mod: outcome.ModName, Done: done, Total: len(jobs)}
		if outcome.Err != nil {
			ev.Error = outcome.Err.Error()
		}
		emit(ev)
	})

	if err := ctx.Err(); err != nil {
		metrics.ObserveSearch(metrics.OutcomeError, 0)
		return nil, fmt.Errorf("search cancelled: %w", err)
	}

	for mod, ferr := range report.Failed {
		result.Failed[mod] = ferr.Error()
	}

	result.Orders = processor.Rank(report.Orders)
	result.Duration = time.Since(start)

	outcome := metrics.OutcomeOK
	if result.NoSellers() {
		outcome = metrics.OutcomeNoSellers
	}
	metrics.ObserveSearch(outcome, len(result.Orders))
	logger.RecordSearch(len(result.Orders))

	failed := make([]string, 0, len(result.Failed))
	for mod := range result.Failed {
		failed = append(failed, mod)
	}
	sort.Strings(failed)

	logger.LogPerformanceEntry(log, "pipeline", "search", result.Duration, logger.Fields{
		"mods":       len(matches),
		"unresolved": len(result.Unresolved),
		"failed":     failed,
		"ranked":     len(result.Orders),
	})
	emit(ProgressEvent{Stage: StageDone, Done: len(jobs), Total: len(jobs)})

	return result, nil
}

// IsInputError reports whether err is a user-correctable search error.
func IsInputError(err error) bool {
	return errors.Is(err, processor.ErrNoInputLocations) || errors.Is(err, ErrNoMatchingMods)
}

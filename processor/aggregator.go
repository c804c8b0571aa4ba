package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"modscout/config"
	"modscout/internal/channel"
	"modscout/logger"
	"modscout/models"
	"modscout/reader"
)

// OrderBookFetcher is the part of the marketplace the aggregator needs.
type OrderBookFetcher interface {
	FetchOrders(ctx context.Context, slug string) ([]models.Order, error)
}

// AggregateJob is one resolved mod waiting for its order book.
type AggregateJob struct {
	ModName   string
	Slug      string
	Locations models.LocationSet
}

// AggregateReport is the merged outcome of a batch. Orders follow job order;
// Failed is keyed by mod name.
type AggregateReport struct {
	Orders    []models.EnrichedOrder
	Failed    map[string]error
	Succeeded int
}

type Aggregator struct {
	config  *config.Config
	fetcher OrderBookFetcher
	log     *logger.Log

	mu       sync.Mutex
	fetched  int64
	failures int64
}

func NewAggregator(cfg *config.Config, fetcher OrderBookFetcher) *Aggregator {
	log := logger.GetLogger()

	a := &Aggregator{
		config:  cfg,
		fetcher: fetcher,
		log:     log,
	}

	log.WithComponent("aggregator").WithFields(logger.Fields{
		"max_workers": cfg.Reader.MaxWorkers,
		"timeout":     cfg.Reader.Timeout,
	}).Debug("aggregator initialized")

	return a
}

// Aggregate fetches the order book for slug and tags every order with the mod
// and its matched locations. On failure it returns an empty slice and an error
// wrapping reader.ErrProviderUnavailable.
func (a *Aggregator) Aggregate(ctx context.Context, modName, slug string, matched models.LocationSet) ([]models.EnrichedOrder, error) {
	if timeout := a.config.Reader.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	orders, err := a.fetcher.FetchOrders(ctx, slug)
	if err != nil {
		a.count(false)
		if !errors.Is(err, reader.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", reader.ErrProviderUnavailable, err)
		}
		return []models.EnrichedOrder{}, fmt.Errorf("fetch orders for %q: %w", modName, err)
	}
	a.count(true)

	locations := matched.Sorted()
	enriched := make([]models.EnrichedOrder, 0, len(orders))
	for _, o := range orders {
		enriched = append(enriched, models.EnrichedOrder{
			Order:            o,
			ModName:          modName,
			ModURLName:       slug,
			MatchedLocations: append([]string(nil), locations...),
		})
	}
	return enriched, nil
}

// AggregateAll runs jobs on a bounded worker pool. A failing job is recorded
// in the report and never stops its siblings. progress, when not nil, is
// called from the collecting goroutine once per finished job.
func (a *Aggregator) AggregateAll(ctx context.Context, jobs []AggregateJob, progress func(models.AggregateOutcome)) AggregateReport {
	report := AggregateReport{
		Orders: []models.EnrichedOrder{},
		Failed: make(map[string]error),
	}
	if len(jobs) == 0 {
		return report
	}

	jobs = append([]AggregateJob(nil), jobs...)
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].ModName < jobs[j].ModName })

	workers := a.config.Reader.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	log := a.log.WithComponent("aggregator").WithFields(logger.Fields{
		"jobs":    len(jobs),
		"workers": workers,
	})
	start := time.Now()

	queue := make(chan int)
	results := channel.NewResults(a.config.Channels.ResultBuffer)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				job := jobs[idx]
				began := time.Now()
				orders, err := a.Aggregate(ctx, job.ModName, job.Slug, job.Locations)
				results.Send(ctx, models.AggregateOutcome{
					Index:    idx,
					ModName:  job.ModName,
					Slug:     job.Slug,
					Orders:   orders,
					Err:      err,
					Duration: time.Since(began),
				})
			}
		}()
	}

	go func() {
		defer close(queue)
		for i := range jobs {
			select {
			case queue <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		results.Close()
	}()

	outcomes := make([]*models.AggregateOutcome, len(jobs))
	for outcome := range results.C {
		outcome := outcome
		outcomes[outcome.Index] = &outcome
		if progress != nil {
			progress(outcome)
		}
	}

	for i, outcome := range outcomes {
		if outcome == nil {
			report.Failed[jobs[i].ModName] = fmt.Errorf("%w: %v", reader.ErrProviderUnavailable, ctx.Err())
			continue
		}
		if outcome.Err != nil {
			report.Failed[outcome.ModName] = outcome.Err
			log.WithFields(logger.Fields{
				"mod":  outcome.ModName,
				"slug": outcome.Slug,
			}).WithError(outcome.Err).Warn("order book unavailable, skipping mod")
			continue
		}
		report.Succeeded++
		report.Orders = append(report.Orders, outcome.Orders...)
	}

	logger.LogPerformanceEntry(log, "aggregator", "aggregate_all", time.Since(start), logger.Fields{
		"succeeded": report.Succeeded,
		"failed":    len(report.Failed),
		"orders":    len(report.Orders),
	})

	return report
}

func (a *Aggregator) count(ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetched++
	if !ok {
		a.failures++
	}
}

// Stats returns how many order books were requested and how many failed.
func (a *Aggregator) Stats() (fetched, failed int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetched, a.failures
}

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"modscout/logger"
	"modscout/models"
	"modscout/processor"
)

type CatalogProvider interface {
	FetchCatalog(ctx context.Context) ([]models.ModRecord, error)
}

type DirectoryProvider interface {
	FetchItems(ctx context.Context) ([]models.MarketItem, error)
}

// Snapshot is the read-only catalog and item directory a search runs against.
type Snapshot struct {
	Catalog   []models.ModRecord
	Directory *processor.Directory
	FetchedAt time.Time
}

func (s *Snapshot) fresh(ttl time.Duration, now time.Time) bool {
	return s != nil && ttl > 0 && now.Sub(s.FetchedAt) < ttl
}

// loadSnapshot fetches both datasets concurrently. Either failure fails the run.
func loadSnapshot(ctx context.Context, catalog CatalogProvider, directory DirectoryProvider, log *logger.Log) (*Snapshot, error) {
	start := time.Now()

	var (
		wg         sync.WaitGroup
		mods       []models.ModRecord
		items      []models.MarketItem
		catalogErr error
		itemsErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		mods, catalogErr = catalog.FetchCatalog(ctx)
	}()
	go func() {
		defer wg.Done()
		items, itemsErr = directory.FetchItems(ctx)
	}()
	wg.Wait()

	if catalogErr != nil {
		return nil, fmt.Errorf("load catalog: %w", catalogErr)
	}
	if itemsErr != nil {
		return nil, fmt.Errorf("load item directory: %w", itemsErr)
	}

	snap := &Snapshot{
		Catalog:   mods,
		Directory: processor.NewDirectory(items),
		FetchedAt: time.Now(),
	}

	entry := log.WithComponent("pipeline")
	logger.LogPerformanceEntry(entry, "pipeline", "load_snapshot", time.Since(start), logger.Fields{
		"mods":  len(mods),
		"items": snap.Directory.Len(),
	})
	if dups := snap.Directory.Duplicates(); len(dups) > 0 {
		entry.WithFields(logger.Fields{"names": dups}).Debug("item directory lists duplicate names")
	}

	return snap, nil
}

package channel

import (
	"context"
	"sync"

	"modscout/logger"
	"modscout/models"
)

type ResultStats struct {
	Sent      int64
	Succeeded int64
	Failed    int64
	Abandoned int64
}

// Results carries aggregation outcomes from workers to the collector. Unlike a
// metrics channel it never drops: Send blocks until there is room or ctx ends.
type Results struct {
	C chan models.AggregateOutcome

	stats      ResultStats
	statsMutex sync.RWMutex
	closeOnce  sync.Once
	log        *logger.Log
}

func NewResults(bufferSize int) *Results {
	if bufferSize < 1 {
		bufferSize = 1
	}
	r := &Results{
		C:   make(chan models.AggregateOutcome, bufferSize),
		log: logger.GetLogger(),
	}

	r.log.WithComponent("result_channel").WithFields(logger.Fields{
		"buffer_size": bufferSize,
	}).Debug("result channel initialized")

	return r
}

// Send delivers outcome. It returns false only when ctx ended first.
func (r *Results) Send(ctx context.Context, outcome models.AggregateOutcome) bool {
	select {
	case r.C <- outcome:
		r.statsMutex.Lock()
		r.stats.Sent++
		if outcome.Err != nil {
			r.stats.Failed++
		} else {
			r.stats.Succeeded++
		}
		r.statsMutex.Unlock()
		return true
	case <-ctx.Done():
		r.statsMutex.Lock()
		r.stats.Abandoned++
		r.statsMutex.Unlock()
		return false
	}
}

// Close is safe to call more than once.
func (r *Results) Close() {
	r.closeOnce.Do(func() {
		close(r.C)
		stats := r.GetStats()
		r.log.WithComponent("result_channel").WithFields(logger.Fields{
			"sent":      stats.Sent,
			"succeeded": stats.Succeeded,
			"failed":    stats.Failed,
			"abandoned": stats.Abandoned,
		}).Debug("result channel closed")
	})
}

func (r *Results) GetStats() ResultStats {
	r.statsMutex.RLock()
	defer r.statsMutex.RUnlock()
	return r.stats
}

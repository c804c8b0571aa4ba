package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type componentStat struct {
	warns  int64
	errors int64
}

type providerStat struct {
	requests int64
	failures int64
	bytes    int64
}

var (
	searchesRun   int64
	ordersRanked  int64
	componentData sync.Map // map[string]*componentStat
	providerData  sync.Map // map[string]*providerStat
)

func componentStats(component string) *componentStat {
	v, _ := componentData.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func providerStats(provider string) *providerStat {
	v, _ := providerData.LoadOrStore(provider, &providerStat{})
	return v.(*providerStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&componentStats(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&componentStats(component).errors, 1)
}

// RecordProviderRead counts a successful provider response of size bytes.
func RecordProviderRead(provider string, size int) {
	ps := providerStats(provider)
	atomic.AddInt64(&ps.requests, 1)
	atomic.AddInt64(&ps.bytes, int64(size))
}

// RecordProviderFailure counts a failed provider request.
func RecordProviderFailure(provider string) {
	ps := providerStats(provider)
	atomic.AddInt64(&ps.requests, 1)
	atomic.AddInt64(&ps.failures, 1)
}

// RecordSearch counts a completed search and the orders it ranked.
func RecordSearch(ranked int) {
	atomic.AddInt64(&searchesRun, 1)
	atomic.AddInt64(&ordersRanked, int64(ranked))
}

// StartReport logs a runtime report every interval until ctx is done.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func reportFields() Fields {
	components := map[string]map[string]int64{}
	componentData.Range(func(k, v any) bool {
		cs := v.(*componentStat)
		components[k.(string)] = map[string]int64{
			"warns":  atomic.LoadInt64(&cs.warns),
			"errors": atomic.LoadInt64(&cs.errors),
		}
		return true
	})

	providers := map[string]map[string]int64{}
	providerData.Range(func(k, v any) bool {
		ps := v.(*providerStat)
		providers[k.(string)] = map[string]int64{
			"requests": atomic.LoadInt64(&ps.requests),
			"failures": atomic.LoadInt64(&ps.failures),
			"bytes":    atomic.LoadInt64(&ps.bytes),
		}
		return true
	})

	return Fields{
		"searches":      atomic.LoadInt64(&searchesRun),
		"orders_ranked": atomic.LoadInt64(&ordersRanked),
		"goroutines":    runtime.NumGoroutine(),
		"components":    components,
		"providers":     providers,
	}
}

func logReport(ctx context.Context, log *Log) {
	fields := reportFields()

	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	memoryMB := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memoryMB = float64(vm.Used) / 1024 / 1024
	}
	fields["cpu_percent"] = cpuPct
	fields["memory_mb"] = int64(memoryMB)

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	publishReport(ctx, cpuPct, memoryMB, fields["searches"].(int64), fields["orders_ranked"].(int64))
}

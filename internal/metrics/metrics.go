// Registers:
//
//	#modscout_provider_requests_total{provider,outcome}
//	#modscout_provider_request_seconds{provider}
//	#modscout_searches_total{outcome}
//	#modscout_ranked_orders
//	#modscout_unresolved_mods_total
//	#go_* and process_* system metrics
//
// Served by the web front end on /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK        = "ok"
	OutcomeNoSellers = "no_sellers"
	OutcomeNoInput   = "no_input"
	OutcomeNoMatch   = "no_match"
	OutcomeError     = "error"
)

var (
	once             sync.Once
	registry         *prometheus.Registry
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	searches         *prometheus.CounterVec
	rankedOrders     prometheus.Histogram
	unresolvedMods   prometheus.Counter
)

func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		providerRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modscout_provider_requests_total",
				Help: "Requests made to catalog and marketplace providers",
			},
			[]string{"provider", "outcome"},
		)
		providerLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modscout_provider_request_seconds",
				Help:    "Provider request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		)
		searches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modscout_searches_total",
				Help: "Searches by outcome",
			},
			[]string{"outcome"},
		)
		rankedOrders = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "modscout_ranked_orders",
			Help:    "Eligible orders per search",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		})
		unresolvedMods = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modscout_unresolved_mods_total",
			Help: "Matched mods without a marketplace listing",
		})

		registry.MustRegister(
			providerRequests,
			providerLatency,
			searches,
			rankedOrders,
			unresolvedMods,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveProviderRequest records one provider call.
func ObserveProviderRequest(provider string, ok bool, duration time.Duration) {
	Init()
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	providerRequests.WithLabelValues(provider, outcome).Inc()
	providerLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveSearch records a finished search under one of the Outcome labels.
func ObserveSearch(outcome string, ranked int) {
	Init()
	searches.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK || outcome == OutcomeNoSellers {
		rankedOrders.Observe(float64(ranked))
	}
}

func AddUnresolved(n int) {
	Init()
	unresolvedMods.Add(float64(n))
}

package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_gateway_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_gateway_requests_total",
			Help: "Total backend requests by outcome",
		},
		[]string{"operation", "status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	FetchesDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_fetches_discarded_total",
			Help: "Fetch results dropped because the entry was cancelled, invalidated or updated meanwhile",
		},
		[]string{"root"},
	)

	Invalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_cache_invalidations_total",
			Help: "Total cache invalidations by key root",
		},
		[]string{"root"},
	)

	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_mutations_total",
			Help: "Archive and unarchive mutations by outcome",
		},
		[]string{"action", "status"},
	)

	MutationRollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_mutation_rollbacks_total",
			Help: "Optimistic updates rolled back after a failed mutation",
		},
		[]string{"action"},
	)

	PagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_pages_fetched_total",
			Help: "List pages fetched by view",
		},
		[]string{"view"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "console_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "console_websocket_clients",
			Help: "Connected websocket clients",
		},
	)
)

var initOnce sync.Once

// Init registers collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(GatewayRequestDuration)
		prometheus.MustRegister(GatewayRequestsTotal)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(FetchesDiscarded)
		prometheus.MustRegister(Invalidations)
		prometheus.MustRegister(MutationsTotal)
		prometheus.MustRegister(MutationRollbacks)
		prometheus.MustRegister(PagesFetched)
		prometheus.MustRegister(BreakerState)
		prometheus.MustRegister(WebsocketClients)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

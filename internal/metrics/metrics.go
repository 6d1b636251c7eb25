package metrics

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taxi-dashboard/internal/pipeline"
	"taxi-dashboard/internal/taxi"
)

type Collector struct {
	reg *prometheus.Registry

	DatasetRows     prometheus.Gauge
	DatasetReloads  prometheus.Counter
	LoadDuration    prometheus.Histogram
	RowsRead        prometheus.Counter
	RowsKept        prometheus.Counter
	RowsDropped     *prometheus.CounterVec // reason label: null|fare|distance|duration
	PrecomputeTime  prometheus.Histogram
	QueryDuration   *prometheus.HistogramVec // path label: summary|scan
	QueryResults    *prometheus.CounterVec   // outcome label: ok|empty|invalid|error
	CacheRequests   *prometheus.CounterVec   // result label: hit|miss
	NATSRequests    prometheus.Counter
	NATSRequestErrs prometheus.Counter
	NATSPublished   prometheus.Counter
	NATSConnected   prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec // route, code labels
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taxi_dataset_rows",
			Help: "Rows in the currently loaded enriched table.",
		}),
		DatasetReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taxi_dataset_reloads_total",
			Help: "Times a changed dataset replaced the loaded one.",
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxi_load_duration_seconds",
			Help:    "Duration of reading, cleaning and deriving the trip table.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taxi_rows_read_total",
			Help: "Raw trip rows read from the source.",
		}),
		RowsKept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taxi_rows_kept_total",
			Help: "Trip rows that passed cleaning.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxi_rows_dropped_total",
			Help: "Trip rows dropped by cleaning, by rule.",
		}, []string{"reason"}),
		PrecomputeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxi_precompute_duration_seconds",
			Help:    "Duration of building the summary tables.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxi_query_duration_seconds",
			Help:    "Duration of dashboard queries, cache lookups included.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18),
		}, []string{"path"}),
		QueryResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxi_query_results_total",
			Help: "Dashboard queries by outcome.",
		}, []string{"outcome"}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxi_cache_requests_total",
			Help: "Result cache lookups.",
		}, []string{"result"}),
		NATSRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taxi_nats_requests_total",
			Help: "Query requests received over NATS.",
		}),
		NATSRequestErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taxi_nats_request_errors_total",
			Help: "NATS query requests that could not be answered.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taxi_nats_published_total",
			Help: "Dataset events published to NATS.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taxi_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxi_http_requests_total",
			Help: "HTTP API requests by route and status code.",
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		c.DatasetRows, c.DatasetReloads, c.LoadDuration,
		c.RowsRead, c.RowsKept, c.RowsDropped, c.PrecomputeTime,
		c.QueryDuration, c.QueryResults, c.CacheRequests,
		c.NATSRequests, c.NATSRequestErrs, c.NATSPublished, c.NATSConnected,
		c.HTTPRequests,
	)

	for _, r := range pipeline.Reasons {
		c.RowsDropped.WithLabelValues(string(r))
	}
	for _, o := range []string{"ok", "empty", "invalid", "error"} {
		c.QueryResults.WithLabelValues(o)
	}
	c.CacheRequests.WithLabelValues("hit")
	c.CacheRequests.WithLabelValues("miss")
	return c
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}

// ObserveLoad records one completed dataset load.
func (c *Collector) ObserveLoad(stats pipeline.LoadStats) {
	c.LoadDuration.Observe(stats.Duration.Seconds())
	c.RowsRead.Add(float64(stats.Read))
	c.RowsKept.Add(float64(stats.Kept))
	c.DatasetRows.Set(float64(stats.Kept))
	for reason, n := range stats.Dropped {
		c.RowsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}
}

// ObserveQuery records the latency and outcome of one query.
func (c *Collector) ObserveQuery(path string, d time.Duration, err error) {
	c.QueryDuration.WithLabelValues(path).Observe(d.Seconds())
	c.QueryResults.WithLabelValues(Outcome(err)).Inc()
}

// ObserveCache counts a cache hit or miss.
func (c *Collector) ObserveCache(hit bool) {
	if hit {
		c.CacheRequests.WithLabelValues("hit").Inc()
	} else {
		c.CacheRequests.WithLabelValues("miss").Inc()
	}
}

func (c *Collector) SetNATSConnected(b bool) {
	if b {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

// Outcome classifies a query error for the outcome label. An empty payment
// set is both invalid and empty; it counts as invalid.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, taxi.ErrInvalidFilter):
		return "invalid"
	case errors.Is(err, taxi.ErrEmptyResult):
		return "empty"
	}
	return "error"
}

package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"taxi-dashboard/internal/config"
	"taxi-dashboard/internal/dashboard"
	"taxi-dashboard/internal/db"
	"taxi-dashboard/internal/httpapi"
	"taxi-dashboard/internal/metrics"
	"taxi-dashboard/internal/pipeline"
	"taxi-dashboard/internal/publisher"
	"taxi-dashboard/internal/source"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mcol := metrics.NewCollector()
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	trips, zones, closeSources := openSources(ctx, cfg)
	defer closeSources()

	svc, err := dashboard.New(trips, zones, dashboard.Config{
		Path:      cfg.QueryPath,
		Workers:   cfg.ScanWorkers,
		CacheSize: cfg.CacheSize,
	}, &observer{c: mcol})
	if err != nil {
		log.Fatalf("dashboard error: %v", err)
	}

	// NATS is optional
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		svc.OnLoad(func(ds *dashboard.Dataset) {
			if err := pub.PublishDataset(ds); err != nil {
				log.Printf("publish dataset event: %v", err)
			}
		})
		go func() {
			if err := pub.Serve(ctx, svc, cfg.NATSQueue); err != nil {
				log.Printf("nats responder stopped: %v", err)
			}
		}()
	}

	if _, _, err := svc.Load(ctx); err != nil {
		log.Fatalf("load dataset: %v", err)
	}

	api := httpapi.New(svc, &requestMetrics{c: mcol}, mcol.Handler())
	httpSrv := api.Serve(cfg.HTTPAddr)

	done := make(chan struct{})
	switch {
	case cfg.UseDatabase():
		// A SQL source has no file events; poll its identity instead.
		go func() {
			defer close(done)
			ticker := time.NewTicker(cfg.RefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				if _, changed, err := svc.Load(ctx); err != nil {
					log.Printf("refresh failed, keeping current dataset: %v", err)
				} else if changed {
					log.Printf("trip table changed, dataset reloaded")
				}
			}
		}()
	case cfg.WatchFiles:
		go func() {
			defer close(done)
			patterns := append(cfg.TripPatterns(), cfg.ZoneFile)
			if err := svc.Watch(ctx, patterns, dashboard.DefaultDebounce); err != nil {
				log.Printf("file watch stopped: %v", err)
			}
		}()
	default:
		close(done)
	}

	// Block until context cancelled
	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpSrv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	<-done
	log.Println("shutdown complete")
}

// openSources builds the trip and zone sources, downloading missing raw
// files first.
func openSources(ctx context.Context, cfg *config.Config) (pipeline.TripSource, pipeline.ZoneSource, func()) {
	downloads := []source.Download{{URL: cfg.ZoneURL, Path: cfg.ZoneFile}}
	if !cfg.UseDatabase() && !strings.ContainsAny(cfg.TripFile, "*?[,") {
		downloads = append(downloads, source.Download{URL: cfg.TripURL, Path: cfg.TripFile})
	}
	if err := source.Fetch(ctx, nil, cfg.FetchTimeout, downloads...); err != nil {
		log.Fatalf("fetch raw data: %v", err)
	}
	zones := &source.ZoneCSV{Path: cfg.ZoneFile}

	if cfg.UseDatabase() {
		sqlDB, err := db.Open(cfg.TripsDatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		if err := db.Ping(ctx, sqlDB); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		trips, err := db.NewTripTable(sqlDB, cfg.TripsTable)
		if err != nil {
			log.Fatalf("trip table: %v", err)
		}
		log.Printf("reading trips from table %s", trips.Table)
		return trips, zones, func() { sqlDB.Close() }
	}

	if cfg.IsCSV() {
		return &source.CSVTrips{Pattern: cfg.TripFile}, zones, func() {}
	}
	return &source.ParquetTrips{Pattern: cfg.TripFile}, zones, func() {}
}

// observer adapts the Collector to dashboard.Observer.
type observer struct{ c *metrics.Collector }

func (o *observer) LoadObserve(stats pipeline.LoadStats) { o.c.ObserveLoad(stats) }
func (o *observer) PrecomputeObserve(d time.Duration)    { o.c.PrecomputeTime.Observe(d.Seconds()) }
func (o *observer) CacheObserve(hit bool)                { o.c.ObserveCache(hit) }
func (o *observer) DatasetSwapped()                      { o.c.DatasetReloads.Inc() }
func (o *observer) QueryObserve(path string, d time.Duration, err error) {
	o.c.ObserveQuery(path, d, err)
}

type requestMetrics struct{ c *metrics.Collector }

func (r *requestMetrics) HTTPRequestInc(route string, code int) {
	r.c.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSRequestInc()         { p.c.NATSRequests.Inc() }
func (p *pubMetrics) NATSRequestErrInc()      { p.c.NATSRequestErrs.Inc() }
func (p *pubMetrics) NATSPublishedInc()       { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSSetConnected(b bool) { p.c.SetNATSConnected(b) }

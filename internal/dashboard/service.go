// Package dashboard owns the loaded dataset and answers filtered queries
// against it.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"taxi-dashboard/internal/cache"
	"taxi-dashboard/internal/engine"
	"taxi-dashboard/internal/pipeline"
	"taxi-dashboard/internal/summary"
	"taxi-dashboard/internal/taxi"
)

// Query paths.
const (
	PathSummary = "summary"
	PathScan    = "scan"
)

// ErrNotLoaded is returned by queries issued before the first successful Load.
var ErrNotLoaded = fmt.Errorf("%w: dataset not loaded", taxi.ErrSourceUnavailable)

// Observer receives service events. Implementations must be safe for
// concurrent use.
type Observer interface {
	LoadObserve(stats pipeline.LoadStats)
	PrecomputeObserve(d time.Duration)
	QueryObserve(path string, d time.Duration, err error)
	CacheObserve(hit bool)
	DatasetSwapped()
}

type Config struct {
	// Path is PathSummary or PathScan.
	Path      string
	Workers   int
	CacheSize int
}

// Dataset is one loaded, immutable version of the data.
type Dataset struct {
	Identity string
	Table    *pipeline.Table
	// Summaries is nil on the scan path.
	Summaries *summary.Summaries
	Stats     pipeline.LoadStats
	Options   Options
	LoadedAt  time.Time

	agg engine.Aggregator
}

// Options are the values a client needs to build a filter.
type Options struct {
	Dataset  string          `json:"dataset"`
	Rows     int             `json:"rows"`
	MinDate  taxi.Date       `json:"min_date"`
	MaxDate  taxi.Date       `json:"max_date"`
	Payments []PaymentOption `json:"payments"`
	Path     string          `json:"path"`
	LoadedAt time.Time       `json:"loaded_at"`
}

type PaymentOption struct {
	Code  int64  `json:"code"`
	Label string `json:"label"`
}

// DefaultFilter selects the whole dataset.
func (o Options) DefaultFilter() engine.Filter {
	f := engine.Filter{Start: o.MinDate, End: o.MaxDate, HourFrom: 0, HourTo: 23}
	for _, p := range o.Payments {
		f.Payments = append(f.Payments, p.Code)
	}
	return f
}

type Service struct {
	trips pipeline.TripSource
	zones pipeline.ZoneSource
	cfg   Config
	cache *cache.Cache
	obs   Observer

	loadMu sync.Mutex

	mu        sync.RWMutex
	ds        *Dataset
	listeners []func(*Dataset)
}

// New creates a service; obs may be nil.
func New(trips pipeline.TripSource, zones pipeline.ZoneSource, cfg Config, obs Observer) (*Service, error) {
	switch cfg.Path {
	case "":
		cfg.Path = PathSummary
	case PathSummary, PathScan:
	default:
		return nil, fmt.Errorf("invalid query path: %q", cfg.Path)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Service{
		trips: trips,
		zones: zones,
		cfg:   cfg,
		cache: cache.New(cfg.CacheSize),
		obs:   obs,
	}, nil
}

// OnLoad registers fn to be called after every dataset swap.
func (s *Service) OnLoad(fn func(*Dataset)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Dataset returns the current dataset, or nil before the first Load.
func (s *Service) Dataset() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds
}

// Load reads the sources and swaps in a new dataset if their identity
// changed. changed is false when the current dataset was kept. A failed load
// leaves the current dataset in place.
func (s *Service) Load(ctx context.Context) (ds *Dataset, changed bool, err error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	id, err := pipeline.DatasetIdentity(ctx, s.trips, s.zones)
	if err != nil {
		return nil, false, err
	}
	prev := s.Dataset()
	if prev != nil && prev.Identity == id {
		return prev, false, nil
	}

	table, stats, err := pipeline.Load(ctx, s.trips, s.zones)
	if err != nil {
		return nil, false, err
	}
	if s.obs != nil {
		s.obs.LoadObserve(stats)
	}

	ds = &Dataset{Identity: id, Table: table, Stats: stats, LoadedAt: time.Now()}
	switch s.cfg.Path {
	case PathSummary:
		start := time.Now()
		sums, err := summary.Precompute(ctx, table)
		if err != nil {
			return nil, false, fmt.Errorf("precompute summaries: %w", err)
		}
		if s.obs != nil {
			s.obs.PrecomputeObserve(time.Since(start))
		}
		ds.Summaries = sums
		ds.agg = engine.NewSummary(sums)
	case PathScan:
		ds.agg = engine.NewScan(table, s.cfg.Workers)
	}
	ds.Options = optionsOf(ds, s.cfg.Path)

	s.mu.Lock()
	s.ds = ds
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	log.Printf("dataset %s loaded: %d rows read, %d kept, dropped %v in %s",
		short(id), stats.Read, stats.Kept, stats.Dropped, stats.Duration.Round(time.Millisecond))
	if prev != nil && s.obs != nil {
		s.obs.DatasetSwapped()
	}
	for _, fn := range listeners {
		fn(ds)
	}
	return ds, true, nil
}

// Query returns every dashboard output for f, memoized per dataset.
func (s *Service) Query(ctx context.Context, f engine.Filter) (res *engine.Result, err error) {
	start := time.Now()
	defer func() {
		if s.obs != nil {
			s.obs.QueryObserve(s.cfg.Path, time.Since(start), err)
		}
	}()

	ds := s.Dataset()
	if ds == nil {
		return nil, ErrNotLoaded
	}
	if err := f.Validate(); err != nil {
		// A dataset without trips offers no payment types, so its default
		// filter selects none; that is an empty answer, not a bad request.
		if len(ds.Options.Payments) == 0 && errors.Is(err, taxi.ErrEmptyResult) {
			return nil, fmt.Errorf("%w: dataset %s has no trips", taxi.ErrEmptyResult, short(ds.Identity))
		}
		return nil, err
	}
	f = f.Canonical()

	key := cache.Key(ds.Identity, "aggregate", f.Key())
	res, hit, err := cache.Do(ctx, s.cache, key, func(ctx context.Context) (*engine.Result, error) {
		return ds.agg.Aggregate(ctx, f)
	})
	if s.obs != nil {
		s.obs.CacheObserve(hit)
	}
	return res, err
}

// Options returns the filter choices of the current dataset.
func (s *Service) Options() (Options, error) {
	ds := s.Dataset()
	if ds == nil {
		return Options{}, ErrNotLoaded
	}
	return ds.Options, nil
}

func optionsOf(ds *Dataset, path string) Options {
	o := Options{Dataset: ds.Identity, Rows: ds.Table.Len(), Path: path, LoadedAt: ds.LoadedAt}
	var payments []int64
	if ds.Summaries != nil {
		o.MinDate, o.MaxDate = ds.Summaries.MinDate, ds.Summaries.MaxDate
		payments = ds.Summaries.Payments
	} else {
		t := ds.Table
		seen := make(map[int64]struct{})
		for i := 0; i < t.Len(); i++ {
			if i == 0 || t.Date[i] < o.MinDate {
				o.MinDate = t.Date[i]
			}
			if i == 0 || t.Date[i] > o.MaxDate {
				o.MaxDate = t.Date[i]
			}
			if _, ok := seen[t.Payment[i]]; !ok {
				seen[t.Payment[i]] = struct{}{}
				payments = append(payments, t.Payment[i])
			}
		}
		slices.Sort(payments)
	}
	for _, code := range payments {
		o.Payments = append(o.Payments, PaymentOption{Code: code, Label: taxi.PaymentTypeName(code)})
	}
	return o
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

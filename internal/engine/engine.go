package engine

import (
	"context"
	"fmt"

	"taxi-dashboard/internal/taxi"
)

// Aggregator answers dashboard queries for one dataset. Every method fails
// with taxi.ErrInvalidFilter for a malformed filter and taxi.ErrEmptyResult
// when the filter matches no trips.
type Aggregator interface {
	// Path names the strategy, "scan" or "summary".
	Path() string
	Aggregate(ctx context.Context, f Filter) (*Result, error)
	Headline(ctx context.Context, f Filter) (Headline, error)
	TopZones(ctx context.Context, f Filter, n int) ([]ZoneCount, error)
	HourlyFare(ctx context.Context, f Filter) ([]HourlyFare, error)
	DistanceHistogram(ctx context.Context, f Filter) ([]DistanceBin, error)
	PaymentBreakdown(ctx context.Context, f Filter) ([]PaymentCount, error)
	Heatmap(ctx context.Context, f Filter) ([]HeatCell, error)
}

type roller interface {
	rollup(ctx context.Context, p predicate, want parts) (*rollup, error)
}

// Engine implements Aggregator on top of one of the two rollup strategies.
// Both strategies share every output computation below.
type Engine struct {
	path      string
	src       roller
	zoneNames []string
}

func (e *Engine) Path() string { return e.path }

func (e *Engine) run(ctx context.Context, f Filter, want parts) (*rollup, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	r, err := e.src.rollup(ctx, f.compile(), want)
	if err != nil {
		return nil, err
	}
	if r.total.Trips == 0 {
		return nil, fmt.Errorf("%w: no trips match %s", taxi.ErrEmptyResult, f.Key())
	}
	return r, nil
}

// Aggregate computes every output in a single rollup.
func (e *Engine) Aggregate(ctx context.Context, f Filter) (*Result, error) {
	r, err := e.run(ctx, f, partAll)
	if err != nil {
		return nil, err
	}
	return &Result{
		Filter:     f,
		Headline:   r.headline(),
		TopZones:   r.topZones(e.zoneNames, TopN),
		HourlyFare: r.hourlyFare(),
		Distance:   r.distance(),
		Payments:   r.payments(),
		Heatmap:    r.heatmap(),
	}, nil
}

func (e *Engine) Headline(ctx context.Context, f Filter) (Headline, error) {
	r, err := e.run(ctx, f, 0)
	if err != nil {
		return Headline{}, err
	}
	return r.headline(), nil
}

// TopZones returns the n busiest pickup zones; n <= 0 returns all of them.
func (e *Engine) TopZones(ctx context.Context, f Filter, n int) ([]ZoneCount, error) {
	r, err := e.run(ctx, f, partZones)
	if err != nil {
		return nil, err
	}
	return r.topZones(e.zoneNames, n), nil
}

func (e *Engine) HourlyFare(ctx context.Context, f Filter) ([]HourlyFare, error) {
	r, err := e.run(ctx, f, partMetrics)
	if err != nil {
		return nil, err
	}
	return r.hourlyFare(), nil
}

func (e *Engine) DistanceHistogram(ctx context.Context, f Filter) ([]DistanceBin, error) {
	r, err := e.run(ctx, f, partDistance)
	if err != nil {
		return nil, err
	}
	return r.distance(), nil
}

func (e *Engine) PaymentBreakdown(ctx context.Context, f Filter) ([]PaymentCount, error) {
	r, err := e.run(ctx, f, partMetrics)
	if err != nil {
		return nil, err
	}
	return r.payments(), nil
}

func (e *Engine) Heatmap(ctx context.Context, f Filter) ([]HeatCell, error) {
	r, err := e.run(ctx, f, partMetrics)
	if err != nil {
		return nil, err
	}
	return r.heatmap(), nil
}

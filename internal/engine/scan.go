package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"taxi-dashboard/internal/pipeline"
	"taxi-dashboard/internal/summary"
)

// minRowsPerWorker keeps small tables on a single goroutine.
var minRowsPerWorker = 1 << 15

// NewScan returns an Engine that filters the full enriched table on every
// query. The table is split into contiguous partitions scanned concurrently;
// partial rollups are merged with exact integer arithmetic, so the worker
// count never changes a result.
func NewScan(t *pipeline.Table, workers int) *Engine {
	return &Engine{path: "scan", src: &scanner{table: t, workers: workers}, zoneNames: t.ZoneNames}
}

type scanner struct {
	table   *pipeline.Table
	workers int
}

func (s *scanner) rollup(ctx context.Context, p predicate, want parts) (*rollup, error) {
	n := s.table.Len()
	workers := s.workers
	if limit := n / minRowsPerWorker; workers > limit {
		workers = limit
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (n + workers - 1) / workers

	partials := make([]*rollup, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, n)
		g.Go(func() error {
			r, err := s.scanRange(ctx, p, want, lo, hi)
			partials[w] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := newRollup()
	for _, r := range partials {
		out.merge(r)
	}
	return out, nil
}

func (s *scanner) scanRange(ctx context.Context, p predicate, want parts, lo, hi int) (*rollup, error) {
	t := s.table
	r := newRollup()
	for i := lo; i < hi; i++ {
		if (i-lo)%minRowsPerWorker == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !p.match(t.Date[i], t.Hour[i], t.Payment[i]) {
			continue
		}
		r.total.Add(t.Fare[i], t.Distance[i], t.Duration[i])
		if want&partMetrics != 0 {
			h := t.Hour[i]
			r.hours[h].Add(t.Fare[i], t.Distance[i], t.Duration[i])
			r.heat[t.Weekday[i].Index()][h]++
			r.payment[t.Payment[i]]++
		}
		if want&partZones != 0 {
			r.zones[t.PUZone[i]]++
		}
		if want&partDistance != 0 {
			if b, ok := summary.BinOf(t.Distance[i]); ok {
				r.bins[b]++
			}
		}
	}
	return r, nil
}

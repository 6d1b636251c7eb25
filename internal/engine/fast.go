package engine

import (
	"context"

	"taxi-dashboard/internal/summary"
)

// NewSummary returns an Engine answering queries from precomputed summaries.
// Their grouping keys include every filter dimension, so filtering groups and
// re-adding their sums equals filtering rows and aggregating them.
func NewSummary(s *summary.Summaries) *Engine {
	return &Engine{path: "summary", src: &summarySource{s: s}, zoneNames: s.ZoneNames}
}

type summarySource struct {
	s *summary.Summaries
}

func (src *summarySource) rollup(ctx context.Context, p predicate, want parts) (*rollup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := newRollup()
	for _, row := range src.s.Metrics {
		if !p.match(row.Date, row.Hour, row.Payment) {
			continue
		}
		r.total.Merge(row.Sums)
		if want&partMetrics != 0 {
			r.hours[row.Hour].Merge(row.Sums)
			r.heat[row.Weekday.Index()][row.Hour] += row.Trips
			r.payment[row.Payment] += row.Trips
		}
	}
	if want&partZones != 0 {
		for _, row := range src.s.Zones {
			if p.match(row.Date, row.Hour, row.Payment) {
				r.zones[row.Zone] += row.Trips
			}
		}
	}
	if want&partDistance != 0 {
		for _, row := range src.s.Distance {
			if p.match(row.Date, row.Hour, row.Payment) {
				r.bins[row.Bin] += row.Trips
			}
		}
	}
	return r, nil
}

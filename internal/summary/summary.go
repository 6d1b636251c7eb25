package summary

import (
	"cmp"
	"context"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"taxi-dashboard/internal/pipeline"
	"taxi-dashboard/internal/taxi"
)

// Distance histogram binning: 40 bins of 0.625 miles over [0, 25]. The last
// bin is closed so that a trip of exactly 25 miles is counted.
const (
	BinWidth    = 0.625
	MaxDistance = 25.0
	NumBins     = 40
)

// BinOf returns the histogram bin of a distance; ok is false outside [0, 25].
func BinOf(distance float64) (int, bool) {
	if distance < 0 || distance > MaxDistance {
		return 0, false
	}
	b := int(math.Floor(distance / BinWidth))
	if b >= NumBins {
		b = NumBins - 1
	}
	return b, true
}

// MetricsKey is the grouping key of the metrics summary.
type MetricsKey struct {
	Date    taxi.Date
	Hour    uint8
	Weekday taxi.Weekday
	Payment int64
}

// MetricsRow carries per-group trip totals.
type MetricsRow struct {
	MetricsKey
	Sums
}

// ZoneKey is the grouping key of the pickup zone summary.
type ZoneKey struct {
	Date    taxi.Date
	Hour    uint8
	Payment int64
	Zone    int32 // index into Summaries.ZoneNames, or pipeline.NoZone
}

type ZoneRow struct {
	ZoneKey
	Trips int64
}

// DistanceKey is the grouping key of the distance histogram summary.
type DistanceKey struct {
	Date    taxi.Date
	Hour    uint8
	Payment int64
	Bin     int
}

type DistanceRow struct {
	DistanceKey
	Trips int64
}

// Summaries are the precomputed group-by tables of one dataset. They are
// immutable once returned by Precompute.
type Summaries struct {
	Metrics   []MetricsRow
	Zones     []ZoneRow
	Distance  []DistanceRow
	ZoneNames []string

	// Payments lists the distinct payment codes, ascending.
	Payments []int64
	MinDate  taxi.Date
	MaxDate  taxi.Date
}

// Empty reports whether the dataset had no trips at all.
func (s *Summaries) Empty() bool { return len(s.Metrics) == 0 }

// Precompute collapses the enriched table into the three summaries. The
// group-bys are independent and run concurrently.
func Precompute(ctx context.Context, t *pipeline.Table) (*Summaries, error) {
	s := &Summaries{ZoneNames: t.ZoneNames}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.Metrics, err = metricsSummary(ctx, t)
		return err
	})
	g.Go(func() (err error) {
		s.Zones, err = zoneSummary(ctx, t)
		return err
	})
	g.Go(func() (err error) {
		s.Distance, err = distanceSummary(ctx, t)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	for i, r := range s.Metrics {
		if _, ok := seen[r.Payment]; !ok {
			seen[r.Payment] = struct{}{}
			s.Payments = append(s.Payments, r.Payment)
		}
		if i == 0 || r.Date < s.MinDate {
			s.MinDate = r.Date
		}
		if i == 0 || r.Date > s.MaxDate {
			s.MaxDate = r.Date
		}
	}
	slices.Sort(s.Payments)
	return s, nil
}

const ctxCheckEvery = 1 << 16

func metricsSummary(ctx context.Context, t *pipeline.Table) ([]MetricsRow, error) {
	groups := make(map[MetricsKey]*Sums)
	for i := 0; i < t.Len(); i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		k := MetricsKey{Date: t.Date[i], Hour: t.Hour[i], Weekday: t.Weekday[i], Payment: t.Payment[i]}
		acc, ok := groups[k]
		if !ok {
			acc = &Sums{}
			groups[k] = acc
		}
		acc.Add(t.Fare[i], t.Distance[i], t.Duration[i])
	}

	rows := make([]MetricsRow, 0, len(groups))
	for k, v := range groups {
		rows = append(rows, MetricsRow{MetricsKey: k, Sums: *v})
	}
	slices.SortFunc(rows, func(a, b MetricsRow) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.Hour, b.Hour),
			cmp.Compare(a.Weekday, b.Weekday),
			cmp.Compare(a.Payment, b.Payment),
		)
	})
	return rows, nil
}

func zoneSummary(ctx context.Context, t *pipeline.Table) ([]ZoneRow, error) {
	groups := make(map[ZoneKey]int64)
	for i := 0; i < t.Len(); i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		groups[ZoneKey{Date: t.Date[i], Hour: t.Hour[i], Payment: t.Payment[i], Zone: t.PUZone[i]}]++
	}

	rows := make([]ZoneRow, 0, len(groups))
	for k, n := range groups {
		rows = append(rows, ZoneRow{ZoneKey: k, Trips: n})
	}
	slices.SortFunc(rows, func(a, b ZoneRow) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.Hour, b.Hour),
			cmp.Compare(a.Payment, b.Payment),
			cmp.Compare(a.Zone, b.Zone),
		)
	})
	return rows, nil
}

func distanceSummary(ctx context.Context, t *pipeline.Table) ([]DistanceRow, error) {
	groups := make(map[DistanceKey]int64)
	for i := 0; i < t.Len(); i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		bin, ok := BinOf(t.Distance[i])
		if !ok {
			continue
		}
		groups[DistanceKey{Date: t.Date[i], Hour: t.Hour[i], Payment: t.Payment[i], Bin: bin}]++
	}

	rows := make([]DistanceRow, 0, len(groups))
	for k, n := range groups {
		rows = append(rows, DistanceRow{DistanceKey: k, Trips: n})
	}
	slices.SortFunc(rows, func(a, b DistanceRow) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.Hour, b.Hour),
			cmp.Compare(a.Payment, b.Payment),
			cmp.Compare(a.Bin, b.Bin),
		)
	})
	return rows, nil
}

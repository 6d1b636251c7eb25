package engine

import (
	"cmp"
	"slices"

	"taxi-dashboard/internal/summary"
	"taxi-dashboard/internal/taxi"
)

// parts selects which sections of a rollup a caller needs. Totals are always
// computed because every output depends on the empty check.
type parts uint8

const (
	partMetrics parts = 1 << iota
	partZones
	partDistance

	partAll = partMetrics | partZones | partDistance
)

// rollup is the single intermediate both aggregation paths produce: the
// filtered data reduced to the dimensions the outputs are built from.
type rollup struct {
	total   summary.Sums
	hours   [24]summary.Sums
	heat    [7][24]int64
	payment map[int64]int64
	zones   map[int32]int64
	bins    [summary.NumBins]int64
}

func newRollup() *rollup {
	return &rollup{
		payment: make(map[int64]int64),
		zones:   make(map[int32]int64),
	}
}

func (r *rollup) merge(o *rollup) {
	r.total.Merge(o.total)
	for h := range r.hours {
		r.hours[h].Merge(o.hours[h])
	}
	for w := range r.heat {
		for h := range r.heat[w] {
			r.heat[w][h] += o.heat[w][h]
		}
	}
	for k, v := range o.payment {
		r.payment[k] += v
	}
	for k, v := range o.zones {
		r.zones[k] += v
	}
	for b := range r.bins {
		r.bins[b] += o.bins[b]
	}
}

func (r *rollup) headline() Headline {
	h := Headline{TotalTrips: r.total.Trips, TotalRevenue: r.total.FareSum()}
	h.AvgFare, _ = r.total.MeanFare()
	h.AvgDistance, _ = r.total.MeanDistance()
	h.AvgDuration, _ = r.total.MeanDuration()
	return h
}

// topZones ranks pickup zones by trip count, breaking ties by name; the
// unknown zone sorts after every named one.
func (r *rollup) topZones(names []string, n int) []ZoneCount {
	type entry struct {
		idx   int32
		trips int64
	}
	entries := make([]entry, 0, len(r.zones))
	for idx, trips := range r.zones {
		if trips > 0 {
			entries = append(entries, entry{idx, trips})
		}
	}
	name := func(idx int32) (string, bool) {
		if idx < 0 || int(idx) >= len(names) {
			return "", false
		}
		return names[idx], true
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(b.trips, a.trips); c != 0 {
			return c
		}
		an, aok := name(a.idx)
		bn, bok := name(b.idx)
		switch {
		case aok && !bok:
			return -1
		case !aok && bok:
			return 1
		}
		return cmp.Or(cmp.Compare(an, bn), cmp.Compare(a.idx, b.idx))
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}

	out := make([]ZoneCount, len(entries))
	for i, e := range entries {
		out[i].Trips = e.trips
		if s, ok := name(e.idx); ok {
			out[i].Zone = &s
		}
	}
	return out
}

func (r *rollup) hourlyFare() []HourlyFare {
	out := make([]HourlyFare, 24)
	for h := range out {
		s := r.hours[h]
		out[h] = HourlyFare{Hour: h, Trips: s.Trips}
		if avg, ok := s.MeanFare(); ok {
			out[h].AvgFare = &avg
		}
	}
	return out
}

func (r *rollup) distance() []DistanceBin {
	out := make([]DistanceBin, summary.NumBins)
	for b := range out {
		out[b] = DistanceBin{
			Bin:   b,
			Low:   float64(b) * summary.BinWidth,
			High:  float64(b+1) * summary.BinWidth,
			Trips: r.bins[b],
		}
	}
	return out
}

func (r *rollup) payments() []PaymentCount {
	out := make([]PaymentCount, 0, len(r.payment))
	for code, trips := range r.payment {
		if trips > 0 {
			out = append(out, PaymentCount{PaymentType: code, Label: taxi.PaymentTypeName(code), Trips: trips})
		}
	}
	slices.SortFunc(out, func(a, b PaymentCount) int { return cmp.Compare(a.PaymentType, b.PaymentType) })
	return out
}

func (r *rollup) heatmap() []HeatCell {
	var out []HeatCell
	for _, wd := range taxi.Weekdays {
		for h := 0; h < 24; h++ {
			if n := r.heat[wd.Index()][h]; n > 0 {
				out = append(out, HeatCell{Weekday: wd, Hour: h, Trips: n})
			}
		}
	}
	return out
}

package engine

import (
	"fmt"

	"taxi-dashboard/internal/summary"
	"taxi-dashboard/internal/taxi"
)

// Rebin merges adjacent histogram bins into buckets display buckets. buckets
// must divide the base bin count so that no bin is split.
func Rebin(bins []DistanceBin, buckets int) ([]DistanceBin, error) {
	if len(bins) != summary.NumBins {
		return nil, fmt.Errorf("rebin: expected %d base bins, got %d", summary.NumBins, len(bins))
	}
	if buckets <= 0 || summary.NumBins%buckets != 0 {
		return nil, fmt.Errorf("%w: bucket count %d must divide %d", taxi.ErrInvalidFilter, buckets, summary.NumBins)
	}
	per := summary.NumBins / buckets
	out := make([]DistanceBin, buckets)
	for i := range out {
		first, last := bins[i*per], bins[(i+1)*per-1]
		out[i] = DistanceBin{Bin: i, Low: first.Low, High: last.High}
		for _, b := range bins[i*per : (i+1)*per] {
			out[i].Trips += b.Trips
		}
	}
	return out, nil
}

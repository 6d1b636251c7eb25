package summary

import (
	"math"
	"math/bits"
	"time"
)

// Scale is the number of fixed-point units per currency unit or mile. Fares
// and distances are accumulated in millionths, durations in nanoseconds.
const Scale = 1e6

// Sums accumulates trip totals in fixed point so that adding group sums in any
// order gives exactly the same result as adding the rows themselves.
type Sums struct {
	Trips    int64
	Fare     Fixed // millionths of a currency unit
	Distance Fixed // millionths of a mile
	Duration Fixed // nanoseconds
}

// Add accounts for one trip.
func (s *Sums) Add(fare, distance float64, d time.Duration) {
	s.Trips++
	s.Fare.Add(int64(math.Round(fare * Scale)))
	s.Distance.Add(int64(math.Round(distance * Scale)))
	s.Duration.Add(int64(d))
}

// Merge folds o into s.
func (s *Sums) Merge(o Sums) {
	s.Trips += o.Trips
	s.Fare.Merge(o.Fare)
	s.Distance.Merge(o.Distance)
	s.Duration.Merge(o.Duration)
}

// FareSum is the total fare in currency units.
func (s Sums) FareSum() float64 { return s.Fare.Float64() / Scale }

// DistanceSum is the total distance in miles.
func (s Sums) DistanceSum() float64 { return s.Distance.Float64() / Scale }

// DurationSum is the total duration in minutes.
func (s Sums) DurationSum() float64 { return s.Duration.Float64() / float64(time.Minute) }

// MeanFare is FareSum / Trips; ok is false when there are no trips.
func (s Sums) MeanFare() (float64, bool) { return s.mean(s.FareSum()) }

// MeanDistance is DistanceSum / Trips.
func (s Sums) MeanDistance() (float64, bool) { return s.mean(s.DistanceSum()) }

// MeanDuration is DurationSum / Trips, in minutes.
func (s Sums) MeanDuration() (float64, bool) { return s.mean(s.DurationSum()) }

func (s Sums) mean(total float64) (float64, bool) {
	if s.Trips == 0 {
		return 0, false
	}
	return total / float64(s.Trips), true
}

// Fixed is a signed 128-bit integer accumulator. Nanosecond totals over a
// few million trips can exceed int64.
type Fixed struct {
	Hi int64
	Lo uint64
}

// Add adds v.
func (f *Fixed) Add(v int64) {
	var carry uint64
	f.Lo, carry = bits.Add64(f.Lo, uint64(v), 0)
	f.Hi += int64(carry)
	if v < 0 {
		f.Hi--
	}
}

// Merge adds o.
func (f *Fixed) Merge(o Fixed) {
	var carry uint64
	f.Lo, carry = bits.Add64(f.Lo, o.Lo, 0)
	f.Hi += o.Hi + int64(carry)
}

// Float64 converts f to the nearest float64; values below 2^53 are exact.
func (f Fixed) Float64() float64 {
	switch {
	case f.Hi == 0:
		return float64(f.Lo)
	case f.Hi == -1 && f.Lo >= 1<<63:
		return float64(int64(f.Lo))
	}
	return float64(f.Hi)*(1<<64) + float64(f.Lo)
}

package summary

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-dashboard/internal/pipeline"
	"taxi-dashboard/internal/pipeline/pipelinetest"
	"taxi-dashboard/internal/taxi"
)

func load(t *testing.T, rows []taxi.RawTrip, zones []taxi.Zone) *pipeline.Table {
	t.Helper()
	table, _, err := pipeline.Load(context.Background(),
		&pipelinetest.Trips{ID: "t", Rows: rows},
		&pipelinetest.Zones{ID: "z", Zones: zones})
	require.NoError(t, err)
	return table
}

func TestBinOf(t *testing.T) {
	cases := []struct {
		d    float64
		bin  int
		inOK bool
	}{
		{0, 0, true},
		{0.624, 0, true},
		{0.625, 1, true},
		{3.1, 4, true},
		{24.99, 39, true},
		{25, 39, true},
		{25.0001, 0, false},
		{30, 0, false},
		{-1, 0, false},
	}
	for _, c := range cases {
		bin, ok := BinOf(c.d)
		assert.Equal(t, c.inOK, ok, "distance %v", c.d)
		if ok {
			assert.Equal(t, c.bin, bin, "distance %v", c.d)
		}
	}
}

func TestLongTripOnlyLeavesDistanceSummary(t *testing.T) {
	pickup := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	table := load(t, []taxi.RawTrip{
		pipelinetest.Trip(pickup, 40, 1, 2, 30, 90, 1),
		pipelinetest.Trip(pickup, 10, 1, 2, 2, 12, 1),
	}, []taxi.Zone{{LocationID: 1, Name: "A"}})

	s, err := Precompute(context.Background(), table)
	require.NoError(t, err)

	var metricTrips, zoneTrips, distanceTrips int64
	for _, r := range s.Metrics {
		metricTrips += r.Trips
	}
	for _, r := range s.Zones {
		zoneTrips += r.Trips
	}
	for _, r := range s.Distance {
		distanceTrips += r.Trips
	}
	assert.Equal(t, int64(2), metricTrips)
	assert.Equal(t, int64(2), zoneTrips)
	assert.Equal(t, int64(1), distanceTrips)
	require.Len(t, s.Distance, 1)
	assert.Equal(t, 3, s.Distance[0].Bin)
}

func TestPrecomputeGroupsAndSums(t *testing.T) {
	pickup := time.Date(2024, time.January, 1, 8, 5, 0, 0, time.UTC) // Monday
	table := load(t, []taxi.RawTrip{
		pipelinetest.Trip(pickup, 5, 1, 2, 2, 10, 1),
		pipelinetest.Trip(pickup.Add(20*time.Minute), 6, 1, 2, 4, 15, 1),
		pipelinetest.Trip(pickup.Add(2*time.Hour), 3, 2, 1, 1.5, 7.5, 2),
	}, []taxi.Zone{{LocationID: 1, Name: "A"}, {LocationID: 2, Name: "B"}})

	s, err := Precompute(context.Background(), table)
	require.NoError(t, err)

	require.Len(t, s.Metrics, 2)
	first := s.Metrics[0]
	assert.Equal(t, MetricsKey{Date: taxi.NewDate(2024, time.January, 1), Hour: 8, Weekday: taxi.Monday, Payment: 1}, first.MetricsKey)
	assert.Equal(t, int64(2), first.Trips)
	assert.Equal(t, 25.0, first.FareSum())
	assert.Equal(t, 6.0, first.DistanceSum())
	assert.InDelta(t, 11.0, first.DurationSum(), 1e-9)

	assert.Equal(t, []int64{1, 2}, s.Payments)
	assert.Equal(t, taxi.NewDate(2024, time.January, 1), s.MinDate)
	assert.Equal(t, s.MinDate, s.MaxDate)
	assert.Equal(t, []string{"A", "B"}, s.ZoneNames)
}

func TestPrecomputeIsDeterministic(t *testing.T) {
	table := load(t, pipelinetest.Random(3, 4000, 25), pipelinetest.ZoneTable(25))

	a, err := Precompute(context.Background(), table)
	require.NoError(t, err)
	b, err := Precompute(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.False(t, a.Empty())
}

func TestPrecomputeHonoursCancellation(t *testing.T) {
	table := load(t, pipelinetest.Random(3, 100, 5), pipelinetest.ZoneTable(5))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Precompute(ctx, table)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSumsMeans(t *testing.T) {
	var s Sums
	_, ok := s.MeanFare()
	assert.False(t, ok)

	s.Add(10, 2, 5*time.Minute)
	s.Add(15, 4, 6*time.Minute)
	fare, ok := s.MeanFare()
	require.True(t, ok)
	assert.Equal(t, 12.5, fare)
	assert.Equal(t, 25.0, s.FareSum())
	dist, _ := s.MeanDistance()
	assert.Equal(t, 3.0, dist)
	dur, _ := s.MeanDuration()
	assert.Equal(t, 5.5, dur)

	var other Sums
	other.Merge(s)
	assert.Equal(t, s, other)
}

func TestSumsKeepSubUnitPrecision(t *testing.T) {
	var s Sums
	s.Add(10.004, 2.004, 5*time.Minute+333)
	s.Add(10.004, 2.004, 5*time.Minute+333)

	assert.InDelta(t, 20.008, s.FareSum(), 1e-12)
	assert.InDelta(t, 4.008, s.DistanceSum(), 1e-12)
	assert.Equal(t, Fixed{Lo: uint64(10*time.Minute + 666)}, s.Duration)
}

func TestFixedCarries(t *testing.T) {
	var f Fixed
	f.Add(math.MaxInt64)
	f.Add(math.MaxInt64)
	f.Add(2)
	assert.Equal(t, Fixed{Hi: 1, Lo: 0}, f)
	assert.Equal(t, 18446744073709551616.0, f.Float64())

	var g Fixed
	g.Add(5)
	g.Add(-7)
	assert.Equal(t, -2.0, g.Float64())

	var merged Fixed
	merged.Merge(f)
	merged.Merge(g)
	assert.Equal(t, Fixed{Hi: 0, Lo: math.MaxUint64 - 1}, merged)
}

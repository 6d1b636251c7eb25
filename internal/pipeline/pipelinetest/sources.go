// Package pipelinetest provides in-memory sources and synthetic trips for tests.
package pipelinetest

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"taxi-dashboard/internal/taxi"
)

// Trips is an in-memory trip source.
type Trips struct {
	ID   string
	Rows []taxi.RawTrip
	Err  error
}

func (s *Trips) Identity(context.Context) (string, error) { return s.ID, nil }

func (s *Trips) ReadTrips(ctx context.Context, fn func(taxi.RawTrip) error) error {
	if s.Err != nil {
		return s.Err
	}
	for _, r := range s.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Zones is an in-memory zone lookup.
type Zones struct {
	ID    string
	Zones []taxi.Zone
	Err   error
}

func (s *Zones) Identity(context.Context) (string, error) { return s.ID, nil }

func (s *Zones) ReadZones(context.Context) ([]taxi.Zone, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Zones, nil
}

// Trip builds a fully populated raw row.
func Trip(pickup time.Time, minutes float64, pu, do int64, distance, fare float64, payment int64) taxi.RawTrip {
	return taxi.RawTrip{
		Pickup:       sql.NullTime{Time: pickup, Valid: true},
		Dropoff:      sql.NullTime{Time: pickup.Add(time.Duration(minutes * float64(time.Minute))), Valid: true},
		PULocationID: sql.NullInt64{Int64: pu, Valid: true},
		DOLocationID: sql.NullInt64{Int64: do, Valid: true},
		Distance:     sql.NullFloat64{Float64: distance, Valid: true},
		Fare:         sql.NullFloat64{Float64: fare, Valid: true},
		PaymentType:  sql.NullInt64{Int64: payment, Valid: true},
	}
}

// ZoneTable returns n named zones with ids 1..n.
func ZoneTable(n int) []taxi.Zone {
	zs := make([]taxi.Zone, n)
	for i := range zs {
		zs[i] = taxi.Zone{LocationID: int64(i + 1), Name: fmt.Sprintf("Zone %03d", i+1)}
	}
	return zs
}

// Random generates n January 2024 trips from a fixed seed. Roughly one row in
// ten breaks a cleaning rule, a few use location ids missing from ZoneTable(zones),
// and some run past the 25 mile histogram range.
func Random(seed int64, n, zones int) []taxi.RawTrip {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]taxi.RawTrip, 0, n)
	for i := 0; i < n; i++ {
		pickup := base.Add(time.Duration(rng.Int63n(int64(31 * 24 * time.Hour))))
		pickup = pickup.Truncate(time.Second)
		minutes := 1 + rng.Float64()*60
		distance := float64(rng.Intn(3000)+1) / 100
		fare := float64(rng.Intn(12000)+300) / 100
		pu := int64(rng.Intn(zones+3) + 1)
		do := int64(rng.Intn(zones+3) + 1)
		payment := int64(rng.Intn(5))

		r := Trip(pickup, minutes, pu, do, distance, fare, payment)
		switch rng.Intn(30) {
		case 0:
			r.Fare.Float64 = 0
		case 1:
			r.Fare.Valid = false
		case 2:
			r.Dropoff.Time = r.Pickup.Time
		}
		rows = append(rows, r)
	}
	return rows
}

package pipeline

import "taxi-dashboard/internal/taxi"

// MaxFare is the inclusive upper bound on a plausible fare.
const MaxFare = 500.0

// Reason says why Clean rejected a row. ReasonKept means it was accepted.
type Reason string

const (
	ReasonKept     Reason = ""
	ReasonNull     Reason = "null"
	ReasonFare     Reason = "fare"
	ReasonDistance Reason = "distance"
	ReasonDuration Reason = "duration"
)

// Reasons lists every drop reason, for metrics label initialisation.
var Reasons = []Reason{ReasonNull, ReasonFare, ReasonDistance, ReasonDuration}

// Clean applies the null and range rules to one raw row.
func Clean(r taxi.RawTrip) (taxi.Trip, Reason) {
	if !r.Pickup.Valid || !r.Dropoff.Valid || !r.PULocationID.Valid || !r.DOLocationID.Valid || !r.Fare.Valid {
		return taxi.Trip{}, ReasonNull
	}
	if !(r.Fare.Float64 > 0 && r.Fare.Float64 <= MaxFare) {
		return taxi.Trip{}, ReasonFare
	}
	// a null distance cannot satisfy distance > 0
	if !r.Distance.Valid || !(r.Distance.Float64 > 0) {
		return taxi.Trip{}, ReasonDistance
	}
	if !r.Dropoff.Time.After(r.Pickup.Time) {
		return taxi.Trip{}, ReasonDuration
	}

	payment := taxi.PaymentUnknown
	if r.PaymentType.Valid {
		payment = r.PaymentType.Int64
	}
	return taxi.Trip{
		Pickup:       r.Pickup.Time,
		Dropoff:      r.Dropoff.Time,
		PULocationID: r.PULocationID.Int64,
		DOLocationID: r.DOLocationID.Int64,
		Distance:     r.Distance.Float64,
		Fare:         r.Fare.Float64,
		PaymentType:  payment,
	}, ReasonKept
}

// Valid reports whether an already cleaned trip still satisfies every rule.
func Valid(t taxi.Trip) bool {
	_, reason := Clean(t.Raw())
	return reason == ReasonKept
}

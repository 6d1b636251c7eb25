package taxi

import (
	"database/sql"
	"time"
)

// RawTrip is one row as read from a trip source. Every column may be null.
type RawTrip struct {
	Pickup       sql.NullTime
	Dropoff      sql.NullTime
	PULocationID sql.NullInt64
	DOLocationID sql.NullInt64
	Distance     sql.NullFloat64 // miles
	Fare         sql.NullFloat64
	PaymentType  sql.NullInt64
}

// Trip is a cleaned trip record: all fields present and in range.
type Trip struct {
	Pickup       time.Time
	Dropoff      time.Time
	PULocationID int64
	DOLocationID int64
	Distance     float64 // miles
	Fare         float64
	PaymentType  int64
}

// Raw converts a cleaned trip back into source form.
func (t Trip) Raw() RawTrip {
	return RawTrip{
		Pickup:       sql.NullTime{Time: t.Pickup, Valid: true},
		Dropoff:      sql.NullTime{Time: t.Dropoff, Valid: true},
		PULocationID: sql.NullInt64{Int64: t.PULocationID, Valid: true},
		DOLocationID: sql.NullInt64{Int64: t.DOLocationID, Valid: true},
		Distance:     sql.NullFloat64{Float64: t.Distance, Valid: true},
		Fare:         sql.NullFloat64{Float64: t.Fare, Valid: true},
		PaymentType:  sql.NullInt64{Int64: t.PaymentType, Valid: true},
	}
}

// Duration is dropoff minus pickup.
func (t Trip) Duration() time.Duration { return t.Dropoff.Sub(t.Pickup) }

// Zone is one entry of the zone lookup table.
type Zone struct {
	LocationID int64
	Name       string
}

// Payment type codes as published in the TLC data dictionary.
const (
	PaymentFlexFare   int64 = 0
	PaymentCreditCard int64 = 1
	PaymentCash       int64 = 2
	PaymentNoCharge   int64 = 3
	PaymentDispute    int64 = 4
	PaymentUnknown    int64 = 5
	PaymentVoided     int64 = 6
)

var paymentNames = map[int64]string{
	PaymentFlexFare:   "Flex fare",
	PaymentCreditCard: "Credit card",
	PaymentCash:       "Cash",
	PaymentNoCharge:   "No charge",
	PaymentDispute:    "Dispute",
	PaymentUnknown:    "Unknown",
	PaymentVoided:     "Voided trip",
}

// PaymentTypeName returns the display label for a payment code.
func PaymentTypeName(code int64) string {
	if n, ok := paymentNames[code]; ok {
		return n
	}
	return "Other"
}

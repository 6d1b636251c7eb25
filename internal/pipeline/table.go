package pipeline

import (
	"time"

	"taxi-dashboard/internal/taxi"
)

// NoZone marks a row whose location id had no match in the zone lookup.
const NoZone int32 = -1

// Table is the cleaned, feature-enriched trip table in columnar form.
// It is built once by Load and must not be modified afterwards.
type Table struct {
	Date     []taxi.Date
	Hour     []uint8
	Weekday  []taxi.Weekday
	Payment  []int64
	Distance []float64
	Fare     []float64
	Duration []time.Duration

	// PUZone and DOZone index into ZoneNames, or hold NoZone.
	PUZone    []int32
	DOZone    []int32
	ZoneNames []string
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Date) }

// DurationMinutes is the trip duration of row i in minutes.
func (t *Table) DurationMinutes(i int) float64 { return t.Duration[i].Seconds() / 60 }

// ZoneName resolves a zone index; ok is false for NoZone.
func (t *Table) ZoneName(idx int32) (string, bool) {
	if idx == NoZone || int(idx) >= len(t.ZoneNames) {
		return "", false
	}
	return t.ZoneNames[idx], true
}

// PickupZone returns the pickup zone name of row i.
func (t *Table) PickupZone(i int) (string, bool) { return t.ZoneName(t.PUZone[i]) }

// DropoffZone returns the dropoff zone name of row i.
func (t *Table) DropoffZone(i int) (string, bool) { return t.ZoneName(t.DOZone[i]) }

func (t *Table) grow(n int) {
	t.Date = make([]taxi.Date, 0, n)
	t.Hour = make([]uint8, 0, n)
	t.Weekday = make([]taxi.Weekday, 0, n)
	t.Payment = make([]int64, 0, n)
	t.Distance = make([]float64, 0, n)
	t.Fare = make([]float64, 0, n)
	t.Duration = make([]time.Duration, 0, n)
	t.PUZone = make([]int32, 0, n)
	t.DOZone = make([]int32, 0, n)
}

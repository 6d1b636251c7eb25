package pipeline

import "taxi-dashboard/internal/taxi"

// ZoneIndex maps location ids onto a dictionary of zone names.
type ZoneIndex struct {
	names []string
	byID  map[int64]int32
}

// NewZoneIndex builds the lookup used by the left joins. When an id appears
// more than once the first name wins, so a join never multiplies rows.
func NewZoneIndex(zones []taxi.Zone) *ZoneIndex {
	idx := &ZoneIndex{byID: make(map[int64]int32, len(zones))}
	dict := make(map[string]int32, len(zones))
	for _, z := range zones {
		if _, dup := idx.byID[z.LocationID]; dup {
			continue
		}
		pos, ok := dict[z.Name]
		if !ok {
			pos = int32(len(idx.names))
			idx.names = append(idx.names, z.Name)
			dict[z.Name] = pos
		}
		idx.byID[z.LocationID] = pos
	}
	return idx
}

// Lookup returns the dictionary position for id, or NoZone.
func (z *ZoneIndex) Lookup(id int64) int32 {
	if pos, ok := z.byID[id]; ok {
		return pos
	}
	return NoZone
}

// Names returns the zone dictionary.
func (z *ZoneIndex) Names() []string { return z.names }

// Deriver appends cleaned trips to a Table, computing the derived columns.
type Deriver struct {
	zones *ZoneIndex
	table *Table
}

// NewDeriver starts a table with room for sizeHint rows.
func NewDeriver(zones *ZoneIndex, sizeHint int) *Deriver {
	t := &Table{ZoneNames: zones.Names()}
	t.grow(sizeHint)
	return &Deriver{zones: zones, table: t}
}

// Add derives one row. It never rejects a trip.
func (d *Deriver) Add(trip taxi.Trip) {
	t := d.table
	t.Date = append(t.Date, taxi.DateOf(trip.Pickup))
	t.Hour = append(t.Hour, uint8(trip.Pickup.Hour()))
	t.Weekday = append(t.Weekday, taxi.WeekdayOf(trip.Pickup))
	t.Payment = append(t.Payment, trip.PaymentType)
	t.Distance = append(t.Distance, trip.Distance)
	t.Fare = append(t.Fare, trip.Fare)
	t.Duration = append(t.Duration, trip.Duration())
	t.PUZone = append(t.PUZone, d.zones.Lookup(trip.PULocationID))
	t.DOZone = append(t.DOZone, d.zones.Lookup(trip.DOLocationID))
}

// Table returns the built table; the Deriver must not be used afterwards.
func (d *Deriver) Table() *Table { return d.table }

// Derive enriches a slice of cleaned trips in one go.
func Derive(trips []taxi.Trip, zones []taxi.Zone) *Table {
	d := NewDeriver(NewZoneIndex(zones), len(trips))
	for _, trip := range trips {
		d.Add(trip)
	}
	return d.Table()
}

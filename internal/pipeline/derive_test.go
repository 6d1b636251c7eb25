package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-dashboard/internal/taxi"
)

func TestDeriveFeatures(t *testing.T) {
	// Sunday 2024-01-07 23:50, 14.5 minutes, crosses midnight.
	pickup := time.Date(2024, time.January, 7, 23, 50, 0, 0, time.UTC)
	trip := taxi.Trip{
		Pickup:       pickup,
		Dropoff:      pickup.Add(14*time.Minute + 30*time.Second),
		PULocationID: 132,
		DOLocationID: 999,
		Distance:     17.2,
		Fare:         70,
		PaymentType:  1,
	}
	zones := []taxi.Zone{{LocationID: 132, Name: "JFK Airport"}}

	table := Derive([]taxi.Trip{trip}, zones)
	require.Equal(t, 1, table.Len())

	assert.Equal(t, taxi.NewDate(2024, time.January, 7), table.Date[0])
	assert.Equal(t, uint8(23), table.Hour[0])
	assert.Equal(t, taxi.Sunday, table.Weekday[0])
	assert.InDelta(t, 14.5, table.DurationMinutes(0), 1e-9)

	name, ok := table.PickupZone(0)
	assert.True(t, ok)
	assert.Equal(t, "JFK Airport", name)

	// unmatched dropoff id keeps the row with a null zone
	_, ok = table.DropoffZone(0)
	assert.False(t, ok)
	assert.Equal(t, NoZone, table.DOZone[0])
}

func TestDeriveNeverDropsRows(t *testing.T) {
	var trips []taxi.Trip
	for i := 0; i < 50; i++ {
		p := time.Date(2024, time.January, 1+i%31, i%24, 0, 0, 0, time.UTC)
		trips = append(trips, taxi.Trip{
			Pickup: p, Dropoff: p.Add(time.Minute),
			PULocationID: int64(i), DOLocationID: int64(i + 1000),
			Distance: 1, Fare: 5, PaymentType: 2,
		})
	}
	table := Derive(trips, nil)
	assert.Equal(t, len(trips), table.Len())
	assert.Empty(t, table.ZoneNames)
}

func TestZoneIndexFirstNameWins(t *testing.T) {
	idx := NewZoneIndex([]taxi.Zone{
		{LocationID: 56, Name: "Corona"},
		{LocationID: 56, Name: "Corona (dup)"},
		{LocationID: 57, Name: "Corona"},
	})
	assert.Equal(t, []string{"Corona"}, idx.Names())
	assert.Equal(t, int32(0), idx.Lookup(56))
	assert.Equal(t, int32(0), idx.Lookup(57))
	assert.Equal(t, NoZone, idx.Lookup(58))
}

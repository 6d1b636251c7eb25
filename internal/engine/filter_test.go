package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"taxi-dashboard/internal/taxi"
)

func TestFilterValidate(t *testing.T) {
	jan1 := taxi.NewDate(2024, time.January, 1)
	jan5 := taxi.NewDate(2024, time.January, 5)
	ok := Filter{Start: jan1, End: jan5, HourFrom: 0, HourTo: 23, Payments: []int64{1}}

	tests := []struct {
		name   string
		mutate func(*Filter)
		empty  bool
	}{
		{name: "inverted dates", mutate: func(f *Filter) { f.Start, f.End = jan5, jan1 }},
		{name: "inverted hours", mutate: func(f *Filter) { f.HourFrom, f.HourTo = 10, 9 }},
		{name: "hour too large", mutate: func(f *Filter) { f.HourTo = 24 }},
		{name: "negative hour", mutate: func(f *Filter) { f.HourFrom = -1 }},
		{name: "no payments", mutate: func(f *Filter) { f.Payments = []int64{} }, empty: true},
	}

	assert.NoError(t, ok.Validate())
	single := ok
	single.Start, single.End, single.HourFrom, single.HourTo = jan5, jan5, 7, 7
	assert.NoError(t, single.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ok
			tt.mutate(&f)
			err := f.Validate()
			assert.ErrorIs(t, err, taxi.ErrInvalidFilter)
			if tt.empty {
				assert.ErrorIs(t, err, taxi.ErrEmptyResult)
			} else {
				assert.NotErrorIs(t, err, taxi.ErrEmptyResult)
			}
		})
	}
}

func TestFilterKeyIsCanonical(t *testing.T) {
	a := Filter{Start: taxi.NewDate(2024, time.January, 1), End: taxi.NewDate(2024, time.January, 2), HourTo: 23, Payments: []int64{2, 1, 2}}
	b := a
	b.Payments = []int64{1, 2}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "date=2024-01-01..2024-01-02;hour=0..23;pay=1,2", a.Key())

	c := b
	c.HourFrom = 1
	assert.NotEqual(t, b.Key(), c.Key())
}

func TestPredicateMatchesInclusiveBounds(t *testing.T) {
	d := taxi.NewDate(2024, time.January, 3)
	p := Filter{Start: d, End: d, HourFrom: 6, HourTo: 9, Payments: []int64{1, 2}}.compile()

	assert.True(t, p.match(d, 6, 1))
	assert.True(t, p.match(d, 9, 2))
	assert.False(t, p.match(d, 5, 1))
	assert.False(t, p.match(d, 10, 1))
	assert.False(t, p.match(d+1, 7, 1))
	assert.False(t, p.match(d, 7, 3))
}

func TestFilterCanonical(t *testing.T) {
	f := Filter{Payments: []int64{3, 1, 3, 2}}
	c := f.Canonical()
	assert.Equal(t, []int64{1, 2, 3}, c.Payments)
	assert.Equal(t, []int64{3, 1, 3, 2}, f.Payments, "receiver is not modified")
	assert.Equal(t, f.Key(), c.Key())
}

package engine

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"taxi-dashboard/internal/taxi"
)

// Filter is the user selection: an inclusive date range, an inclusive hour
// range and a set of payment codes.
type Filter struct {
	Start    taxi.Date `json:"start"`
	End      taxi.Date `json:"end"`
	HourFrom int       `json:"hour_from"`
	HourTo   int       `json:"hour_to"`
	Payments []int64   `json:"payments"`
}

// Validate rejects inverted ranges, hours outside 0-23 and an empty payment
// set. An empty payment set can never match anything, so that error also
// satisfies errors.Is(err, taxi.ErrEmptyResult).
func (f Filter) Validate() error {
	if f.Start > f.End {
		return fmt.Errorf("%w: start date %s is after end date %s", taxi.ErrInvalidFilter, f.Start, f.End)
	}
	if f.HourFrom < 0 || f.HourFrom > 23 || f.HourTo < 0 || f.HourTo > 23 {
		return fmt.Errorf("%w: hours must be within 0-23, got %d-%d", taxi.ErrInvalidFilter, f.HourFrom, f.HourTo)
	}
	if f.HourFrom > f.HourTo {
		return fmt.Errorf("%w: hour range %d-%d is inverted", taxi.ErrInvalidFilter, f.HourFrom, f.HourTo)
	}
	if len(f.Payments) == 0 {
		return fmt.Errorf("%w: %w: no payment types selected", taxi.ErrInvalidFilter, taxi.ErrEmptyResult)
	}
	return nil
}

// Canonical returns f with its payment codes sorted and de-duplicated.
func (f Filter) Canonical() Filter {
	pays := slices.Clone(f.Payments)
	slices.Sort(pays)
	f.Payments = slices.Compact(pays)
	return f
}

// Key is a canonical string form of f: payment order and duplicates do not
// change it.
func (f Filter) Key() string {
	pays := f.Canonical().Payments
	parts := make([]string, len(pays))
	for i, p := range pays {
		parts[i] = strconv.FormatInt(p, 10)
	}
	return fmt.Sprintf("date=%s..%s;hour=%d..%d;pay=%s", f.Start, f.End, f.HourFrom, f.HourTo, strings.Join(parts, ","))
}

type predicate struct {
	start, end       taxi.Date
	hourFrom, hourTo uint8
	payments         map[int64]struct{}
}

func (f Filter) compile() predicate {
	p := predicate{
		start:    f.Start,
		end:      f.End,
		hourFrom: uint8(f.HourFrom),
		hourTo:   uint8(f.HourTo),
		payments: make(map[int64]struct{}, len(f.Payments)),
	}
	for _, code := range f.Payments {
		p.payments[code] = struct{}{}
	}
	return p
}

func (p predicate) match(d taxi.Date, hour uint8, payment int64) bool {
	if d < p.start || d > p.end || hour < p.hourFrom || hour > p.hourTo {
		return false
	}
	_, ok := p.payments[payment]
	return ok
}

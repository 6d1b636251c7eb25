package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"taxi-dashboard/internal/taxi"
)

// TripSource streams raw trip rows.
type TripSource interface {
	// Identity returns a signature that changes whenever the underlying data does.
	Identity(ctx context.Context) (string, error)
	ReadTrips(ctx context.Context, fn func(taxi.RawTrip) error) error
}

// ZoneSource provides the zone lookup table.
type ZoneSource interface {
	Identity(ctx context.Context) (string, error)
	ReadZones(ctx context.Context) ([]taxi.Zone, error)
}

// LoadStats describes one Load run.
type LoadStats struct {
	Read     int
	Kept     int
	Dropped  map[Reason]int
	Duration time.Duration
}

// DatasetIdentity combines both source signatures into one key.
func DatasetIdentity(ctx context.Context, trips TripSource, zones ZoneSource) (string, error) {
	tid, err := trips.Identity(ctx)
	if err != nil {
		return "", sourceErr("trip source identity", err)
	}
	zid, err := zones.Identity(ctx)
	if err != nil {
		return "", sourceErr("zone source identity", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "trips=%s\nzones=%s\n", tid, zid)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Load reads both sources, cleans every trip and derives the enriched table.
func Load(ctx context.Context, trips TripSource, zones ZoneSource) (*Table, LoadStats, error) {
	start := time.Now()
	stats := LoadStats{Dropped: make(map[Reason]int, len(Reasons))}

	zs, err := zones.ReadZones(ctx)
	if err != nil {
		return nil, stats, sourceErr("read zones", err)
	}
	d := NewDeriver(NewZoneIndex(zs), 0)

	err = trips.ReadTrips(ctx, func(r taxi.RawTrip) error {
		stats.Read++
		trip, reason := Clean(r)
		if reason != ReasonKept {
			stats.Dropped[reason]++
			return nil
		}
		stats.Kept++
		d.Add(trip)
		return nil
	})
	if err != nil {
		return nil, stats, sourceErr("read trips", err)
	}
	stats.Duration = time.Since(start)
	return d.Table(), stats, nil
}

// sourceErr keeps the taxonomy of an error; anything unclassified is
// reported as an unavailable source.
func sourceErr(op string, err error) error {
	switch {
	case errors.Is(err, taxi.ErrSourceUnavailable),
		errors.Is(err, taxi.ErrSchemaMismatch),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, taxi.ErrSourceUnavailable, err)
}

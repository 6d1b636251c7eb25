// Package source reads the raw trip files and the zone lookup from disk.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"taxi-dashboard/internal/taxi"
)

// Raw column names of the TLC yellow trip files. Lookups ignore case.
const (
	ColPickup   = "tpep_pickup_datetime"
	ColDropoff  = "tpep_dropoff_datetime"
	ColPU       = "PULocationID"
	ColDO       = "DOLocationID"
	ColDistance = "trip_distance"
	ColFare     = "fare_amount"
	ColPayment  = "payment_type"
)

// TripColumns is the projection read from every trip file.
var TripColumns = []string{ColPickup, ColDropoff, ColPU, ColDO, ColDistance, ColFare, ColPayment}

// expand resolves a comma separated list of paths and globs into a sorted,
// de-duplicated file list.
func expand(patterns string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	for _, p := range strings.Split(patterns, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", taxi.ErrSourceUnavailable, p, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				paths = append(paths, m)
			}
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no files match %q", taxi.ErrSourceUnavailable, patterns)
	}
	sort.Strings(paths)
	return paths, nil
}

// fileIdentity hashes path, size and modification time of every file.
func fileIdentity(paths []string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("%w: stat %s: %v", taxi.ErrSourceUnavailable, p, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", p, st.Size(), st.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Paths returns the files a pattern list currently resolves to.
func Paths(patterns string) ([]string, error) { return expand(patterns) }

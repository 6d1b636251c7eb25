package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"taxi-dashboard/internal/source"
	"taxi-dashboard/internal/taxi"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// DefaultTable is the trip table name used when none is configured.
const DefaultTable = "yellow_tripdata"

// TripTable reads trips from a SQL table whose columns carry the raw trip
// file names.
type TripTable struct {
	DB    *sql.DB
	Table string
}

// NewTripTable validates the table name, which is interpolated into queries.
func NewTripTable(db *sql.DB, table string) (*TripTable, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identRE.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	return &TripTable{DB: db, Table: table}, nil
}

// columns resolves the trip columns case-insensitively and returns them
// quoted, in source.TripColumns order.
func (t *TripTable) columns(ctx context.Context) ([]string, error) {
	names, err := columnNames(ctx, t.DB, t.Table)
	if err != nil {
		return nil, fmt.Errorf("%w: introspect %s: %v", taxi.ErrSourceUnavailable, t.Table, err)
	}
	have := make(map[string]string, len(names))
	for _, n := range names {
		have[strings.ToLower(n)] = n
	}
	out := make([]string, len(source.TripColumns))
	for i, want := range source.TripColumns {
		n, ok := have[strings.ToLower(want)]
		if !ok {
			return nil, fmt.Errorf("%w: table %s has no column %q", taxi.ErrSchemaMismatch, t.Table, want)
		}
		out[i] = `"` + n + `"`
	}
	return out, nil
}

// Identity hashes the row count and the pickup range of the table.
func (t *TripTable) Identity(ctx context.Context) (string, error) {
	cols, err := t.columns(ctx)
	if err != nil {
		return "", err
	}
	q := fmt.Sprintf("SELECT COUNT(*), MIN(%[1]s), MAX(%[1]s) FROM %[2]s", cols[0], t.Table)
	var count int64
	var lo, hi any
	if err := t.DB.QueryRowContext(ctx, q).Scan(&count, &lo, &hi); err != nil {
		return "", fmt.Errorf("%w: query %s identity: %v", taxi.ErrSourceUnavailable, t.Table, err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%v\x00%v", t.Table, count, lo, hi)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (t *TripTable) ReadTrips(ctx context.Context, fn func(taxi.RawTrip) error) error {
	cols, err := t.columns(ctx)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), t.Table)
	rows, err := t.DB.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: query trips: %v", taxi.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("%w: scan trip: %v", taxi.ErrSourceUnavailable, err)
		}
		row := taxi.RawTrip{
			Pickup:       toTime(vals[0]),
			Dropoff:      toTime(vals[1]),
			PULocationID: toInt(vals[2]),
			DOLocationID: toInt(vals[3]),
			Distance:     toFloat(vals[4]),
			Fare:         toFloat(vals[5]),
			PaymentType:  toInt(vals[6]),
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: read trips: %v", taxi.ErrSourceUnavailable, err)
	}
	return nil
}

// SQLite stores timestamps as text; these are the layouts it and common
// loaders write.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// Values that cannot be converted are read as nulls.
func toTime(v any) sql.NullTime {
	switch x := v.(type) {
	case time.Time:
		return sql.NullTime{Time: x, Valid: true}
	case []byte:
		return toTime(string(x))
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return sql.NullTime{Time: t, Valid: true}
			}
		}
	}
	return sql.NullTime{}
}

func toInt(v any) sql.NullInt64 {
	switch x := v.(type) {
	case int64:
		return sql.NullInt64{Int64: x, Valid: true}
	case int32:
		return sql.NullInt64{Int64: int64(x), Valid: true}
	case int16:
		return sql.NullInt64{Int64: int64(x), Valid: true}
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return sql.NullInt64{Int64: int64(x), Valid: true}
		}
	case []byte:
		return toInt(string(x))
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return sql.NullInt64{Int64: n, Valid: true}
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return toInt(f)
		}
	}
	return sql.NullInt64{}
}

func toFloat(v any) sql.NullFloat64 {
	switch x := v.(type) {
	case float64:
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			return sql.NullFloat64{Float64: x, Valid: true}
		}
	case float32:
		return toFloat(float64(x))
	case int64:
		return sql.NullFloat64{Float64: float64(x), Valid: true}
	case int32:
		return sql.NullFloat64{Float64: float64(x), Valid: true}
	case []byte:
		return toFloat(string(x))
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return toFloat(f)
		}
	}
	return sql.NullFloat64{}
}

package source

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"taxi-dashboard/internal/taxi"
)

// Zone lookup columns.
const (
	ColLocationID = "LocationID"
	ColZone       = "Zone"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04",
}

// readFrame loads a CSV file as an all-string dataframe projected to the
// wanted columns, matched without regard to case.
func readFrame(path string, want []string) (dataframe.DataFrame, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("%w: %v", taxi.ErrSourceUnavailable, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{"", "NA", "NaN", "<nil>", "null"}),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("%w: parse %s: %v", taxi.ErrSourceUnavailable, path, df.Err)
	}

	have := make(map[string]string, df.Ncol())
	for _, n := range df.Names() {
		have[strings.ToLower(strings.TrimSpace(n))] = n
	}
	names := make([]string, len(want))
	for i, w := range want {
		n, ok := have[strings.ToLower(w)]
		if !ok {
			return dataframe.DataFrame{}, nil, fmt.Errorf("%w: %s: missing column %q", taxi.ErrSchemaMismatch, path, w)
		}
		names[i] = n
	}
	df = df.Select(names)
	if df.Err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("%w: %s: %v", taxi.ErrSchemaMismatch, path, df.Err)
	}
	return df, names, nil
}

// CSVTrips reads trips from CSV files with the same column names as the
// parquet files. Cells that do not parse are read as nulls.
type CSVTrips struct {
	Pattern string
}

func (c *CSVTrips) Identity(context.Context) (string, error) {
	paths, err := expand(c.Pattern)
	if err != nil {
		return "", err
	}
	return fileIdentity(paths)
}

func (c *CSVTrips) ReadTrips(ctx context.Context, fn func(taxi.RawTrip) error) error {
	paths, err := expand(c.Pattern)
	if err != nil {
		return err
	}
	for _, path := range paths {
		df, names, err := readFrame(path, TripColumns)
		if err != nil {
			return err
		}
		cols := make([]series.Series, len(names))
		for i, n := range names {
			cols[i] = df.Col(n)
		}
		for r := 0; r < df.Nrow(); r++ {
			if r%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			row := taxi.RawTrip{
				Pickup:       parseTime(cols[0].Elem(r)),
				Dropoff:      parseTime(cols[1].Elem(r)),
				PULocationID: parseInt(cols[2].Elem(r)),
				DOLocationID: parseInt(cols[3].Elem(r)),
				Distance:     parseFloat(cols[4].Elem(r)),
				Fare:         parseFloat(cols[5].Elem(r)),
				PaymentType:  parseInt(cols[6].Elem(r)),
			}
			if err := fn(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// ZoneCSV reads the taxi zone lookup table.
type ZoneCSV struct {
	Path string
}

func (z *ZoneCSV) Identity(context.Context) (string, error) {
	return fileIdentity([]string{z.Path})
}

// ReadZones returns the lookup entries in file order. Rows without a usable
// id or name are skipped, which leaves their trips with a null zone.
func (z *ZoneCSV) ReadZones(context.Context) ([]taxi.Zone, error) {
	df, names, err := readFrame(z.Path, []string{ColLocationID, ColZone})
	if err != nil {
		return nil, err
	}
	ids, zones := df.Col(names[0]), df.Col(names[1])
	out := make([]taxi.Zone, 0, df.Nrow())
	for r := 0; r < df.Nrow(); r++ {
		id := parseInt(ids.Elem(r))
		name := zones.Elem(r)
		if !id.Valid || name.IsNA() {
			continue
		}
		out = append(out, taxi.Zone{LocationID: id.Int64, Name: strings.TrimSpace(name.String())})
	}
	return out, nil
}

func parseTime(e series.Element) sql.NullTime {
	if e.IsNA() {
		return sql.NullTime{}
	}
	s := strings.TrimSpace(e.String())
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return sql.NullTime{Time: t, Valid: true}
		}
	}
	return sql.NullTime{}
}

// parseInt accepts integral floats such as "1.0", which is how exporters
// write integer columns that contain nulls.
func parseInt(e series.Element) sql.NullInt64 {
	if e.IsNA() {
		return sql.NullInt64{}
	}
	s := strings.TrimSpace(e.String())
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return sql.NullInt64{Int64: v, Valid: true}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(f), Valid: true}
}

func parseFloat(e series.Element) sql.NullFloat64 {
	if e.IsNA() {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(e.String()), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"taxi-dashboard/internal/taxi"
)

// ParquetTrips reads trips from one or more parquet files. Pattern is a
// comma separated list of paths or globs; matching files are read in sorted
// order as one table.
type ParquetTrips struct {
	Pattern string
}

func (p *ParquetTrips) Identity(context.Context) (string, error) {
	paths, err := expand(p.Pattern)
	if err != nil {
		return "", err
	}
	return fileIdentity(paths)
}

func (p *ParquetTrips) ReadTrips(ctx context.Context, fn func(taxi.RawTrip) error) error {
	paths, err := expand(p.Pattern)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := readParquet(ctx, path, fn); err != nil {
			return err
		}
	}
	return nil
}

type valueKind int

const (
	kindTime valueKind = iota
	kindInt
	kindFloat
)

var tripKinds = []valueKind{kindTime, kindTime, kindInt, kindInt, kindFloat, kindFloat, kindInt}

// leaf is one resolved trip column of a parquet file.
type leaf struct {
	name  string
	index int
	kind  parquet.Kind
	unit  time.Duration // timestamp resolution
}

func readParquet(ctx context.Context, path string, fn func(taxi.RawTrip) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", taxi.ErrSourceUnavailable, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", taxi.ErrSourceUnavailable, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return fmt.Errorf("%w: open parquet %s: %v", taxi.ErrSourceUnavailable, path, err)
	}
	leaves, err := resolveLeaves(pf.Schema())
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	for _, rg := range pf.RowGroups() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := int(rg.NumRows())
		chunks := rg.ColumnChunks()
		cols := make([][]parquet.Value, len(leaves))
		for i, l := range leaves {
			vals, err := readChunk(chunks[l.index], n)
			if err != nil {
				return fmt.Errorf("%w: read %s column %s: %v", taxi.ErrSourceUnavailable, path, l.name, err)
			}
			if len(vals) != n {
				return fmt.Errorf("%w: %s column %s has %d values for %d rows", taxi.ErrSchemaMismatch, path, l.name, len(vals), n)
			}
			cols[i] = vals
		}
		for r := 0; r < n; r++ {
			row := taxi.RawTrip{
				Pickup:       leaves[0].nullTime(cols[0][r]),
				Dropoff:      leaves[1].nullTime(cols[1][r]),
				PULocationID: leaves[2].nullInt(cols[2][r]),
				DOLocationID: leaves[3].nullInt(cols[3][r]),
				Distance:     leaves[4].nullFloat(cols[4][r]),
				Fare:         leaves[5].nullFloat(cols[5][r]),
				PaymentType:  leaves[6].nullInt(cols[6][r]),
			}
			if err := fn(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveLeaves finds the trip columns in the file schema and checks their
// physical types.
func resolveLeaves(schema *parquet.Schema) ([]leaf, error) {
	byName := make(map[string]string)
	for _, path := range schema.Columns() {
		if len(path) == 1 {
			byName[strings.ToLower(path[0])] = path[0]
		}
	}

	leaves := make([]leaf, len(TripColumns))
	for i, want := range TripColumns {
		name, ok := byName[strings.ToLower(want)]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", taxi.ErrSchemaMismatch, want)
		}
		col, _ := schema.Lookup(name)
		if col.MaxRepetitionLevel > 0 {
			return nil, fmt.Errorf("%w: column %q is repeated", taxi.ErrSchemaMismatch, name)
		}
		typ := col.Node.Type()
		l := leaf{name: name, index: col.ColumnIndex, kind: typ.Kind()}

		switch tripKinds[i] {
		case kindTime:
			if l.kind != parquet.Int64 {
				return nil, mismatch(name, "timestamp", l.kind)
			}
			l.unit = timestampUnit(typ)
		case kindInt:
			if l.kind != parquet.Int32 && l.kind != parquet.Int64 && l.kind != parquet.Double {
				return nil, mismatch(name, "integer", l.kind)
			}
		case kindFloat:
			if l.kind != parquet.Double && l.kind != parquet.Float && l.kind != parquet.Int32 && l.kind != parquet.Int64 {
				return nil, mismatch(name, "number", l.kind)
			}
		}
		leaves[i] = l
	}
	return leaves, nil
}

func mismatch(name, want string, got parquet.Kind) error {
	return fmt.Errorf("%w: column %q should be %s, file has %s", taxi.ErrSchemaMismatch, name, want, got)
}

// timestampUnit reads the unit of a TIMESTAMP logical type. Plain INT64
// columns are taken as microseconds.
func timestampUnit(t parquet.Type) time.Duration {
	lt := t.LogicalType()
	if lt == nil || lt.Timestamp == nil {
		return time.Microsecond
	}
	switch u := lt.Timestamp.Unit; {
	case u.Millis != nil:
		return time.Millisecond
	case u.Nanos != nil:
		return time.Nanosecond
	}
	return time.Microsecond
}

func readChunk(cc parquet.ColumnChunk, n int) ([]parquet.Value, error) {
	out := make([]parquet.Value, 0, n)
	pages := cc.Pages()
	defer pages.Close()

	buf := make([]parquet.Value, 4096)
	for {
		page, err := pages.ReadPage()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		values := page.Values()
		for {
			k, err := values.ReadValues(buf)
			out = append(out, buf[:k]...)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			if k == 0 {
				break
			}
		}
	}
}

// Timestamps are naive wall-clock times; they are decoded as UTC.
func (l leaf) nullTime(v parquet.Value) sql.NullTime {
	if v.IsNull() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: time.Unix(0, v.Int64()*int64(l.unit)).UTC(), Valid: true}
}

func (l leaf) nullInt(v parquet.Value) sql.NullInt64 {
	if v.IsNull() {
		return sql.NullInt64{}
	}
	switch l.kind {
	case parquet.Int32:
		return sql.NullInt64{Int64: int64(v.Int32()), Valid: true}
	case parquet.Double:
		d := v.Double()
		if d != float64(int64(d)) {
			return sql.NullInt64{}
		}
		return sql.NullInt64{Int64: int64(d), Valid: true}
	}
	return sql.NullInt64{Int64: v.Int64(), Valid: true}
}

func (l leaf) nullFloat(v parquet.Value) sql.NullFloat64 {
	if v.IsNull() {
		return sql.NullFloat64{}
	}
	switch l.kind {
	case parquet.Float:
		return sql.NullFloat64{Float64: float64(v.Float()), Valid: true}
	case parquet.Int32:
		return sql.NullFloat64{Float64: float64(v.Int32()), Valid: true}
	case parquet.Int64:
		return sql.NullFloat64{Float64: float64(v.Int64()), Valid: true}
	}
	return sql.NullFloat64{Float64: v.Double(), Valid: true}
}

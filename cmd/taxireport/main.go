package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"taxi-dashboard/internal/dashboard"
	"taxi-dashboard/internal/db"
	"taxi-dashboard/internal/engine"
	"taxi-dashboard/internal/export"
	"taxi-dashboard/internal/pipeline"
	"taxi-dashboard/internal/source"
	"taxi-dashboard/internal/taxi"
)

type reportOptions struct {
	trips    string
	zones    string
	dsn      string
	table    string
	start    string
	end      string
	hourFrom int
	hourTo   int
	payment  string
	bins     int
	path     string
	workers  int
	xlsx     string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o reportOptions

	cmd := &cobra.Command{
		Use:   "taxireport",
		Short: "Print the taxi dashboard tables for one filter",
		Long: `Load trip records and a zone lookup, apply one filter and print the headline
metrics followed by every dashboard table.

Trips come from parquet or CSV files (comma-separated globs) or, with --dsn,
from a SQL table.

Example: taxireport --trips 'data/yellow_tripdata_2024-*.parquet' --zones data/taxi_zone_lookup.csv --start 2024-01-01 --end 2024-01-07 --payment 1,2 --xlsx report.xlsx`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), o, cmd.Flags().Changed("payment"), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.trips, "trips", "data/yellow_tripdata_2024-01.parquet", "Trip files: comma-separated paths or globs, parquet or csv")
	f.StringVar(&o.zones, "zones", "data/taxi_zone_lookup.csv", "Zone lookup CSV")
	f.StringVar(&o.dsn, "dsn", "", "Read trips from this database instead of files")
	f.StringVar(&o.table, "table", db.DefaultTable, "Trip table name for --dsn")
	f.StringVar(&o.start, "start", "", "First pickup date, YYYY-MM-DD (default: earliest in data)")
	f.StringVar(&o.end, "end", "", "Last pickup date, YYYY-MM-DD (default: latest in data)")
	f.IntVar(&o.hourFrom, "hour-from", 0, "First pickup hour")
	f.IntVar(&o.hourTo, "hour-to", 23, "Last pickup hour")
	f.StringVar(&o.payment, "payment", "", "Comma-separated payment codes (default: all present)")
	f.IntVar(&o.bins, "bins", 0, "Distance histogram buckets; must divide the base bin count")
	f.StringVar(&o.path, "path", dashboard.PathSummary, "Query path: summary|scan")
	f.IntVar(&o.workers, "workers", runtime.GOMAXPROCS(0), "Scan workers")
	f.StringVar(&o.xlsx, "xlsx", "", "Also write the tables to this workbook")

	return cmd
}

func runReport(ctx context.Context, o reportOptions, paymentSet bool, out io.Writer) error {
	trips, zones, closeSources, err := reportSources(o)
	if err != nil {
		return err
	}
	defer closeSources()

	svc, err := dashboard.New(trips, zones, dashboard.Config{Path: o.path, Workers: o.workers}, nil)
	if err != nil {
		return err
	}
	if _, _, err := svc.Load(ctx); err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	opts, err := svc.Options()
	if err != nil {
		return err
	}

	f, err := reportFilter(o, paymentSet, opts)
	if err != nil {
		return err
	}
	res, err := svc.Query(ctx, f)
	if err == nil && o.bins > 0 {
		res, err = dashboard.WithBins(res, o.bins)
	}
	if err != nil {
		resp := dashboard.NewResponse(nil, err)
		if resp.Status == dashboard.StatusEmpty {
			fmt.Fprintln(out, resp.Message)
			return nil
		}
		return err
	}

	if err := printTables(out, export.Tables(res)); err != nil {
		return err
	}
	if o.xlsx != "" {
		if err := export.SaveAs(o.xlsx, res); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		fmt.Fprintf(out, "\nwrote %s\n", o.xlsx)
	}
	return nil
}

func reportSources(o reportOptions) (pipeline.TripSource, pipeline.ZoneSource, func(), error) {
	zones := &source.ZoneCSV{Path: o.zones}
	if o.dsn != "" {
		sqlDB, err := db.Open(o.dsn)
		if err != nil {
			return nil, nil, nil, err
		}
		trips, err := db.NewTripTable(sqlDB, o.table)
		if err != nil {
			sqlDB.Close()
			return nil, nil, nil, err
		}
		return trips, zones, func() { sqlDB.Close() }, nil
	}
	if strings.EqualFold(filepath.Ext(o.trips), ".csv") {
		return &source.CSVTrips{Pattern: o.trips}, zones, func() {}, nil
	}
	return &source.ParquetTrips{Pattern: o.trips}, zones, func() {}, nil
}

func reportFilter(o reportOptions, paymentSet bool, opts dashboard.Options) (engine.Filter, error) {
	f := opts.DefaultFilter()
	var err error
	if o.start != "" {
		if f.Start, err = taxi.ParseDate(o.start); err != nil {
			return f, fmt.Errorf("%w: %v", taxi.ErrInvalidFilter, err)
		}
	}
	if o.end != "" {
		if f.End, err = taxi.ParseDate(o.end); err != nil {
			return f, fmt.Errorf("%w: %v", taxi.ErrInvalidFilter, err)
		}
	}
	f.HourFrom, f.HourTo = o.hourFrom, o.hourTo
	if paymentSet {
		f.Payments = []int64{}
		for _, part := range strings.Split(o.payment, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			code, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return f, fmt.Errorf("%w: invalid payment: %q", taxi.ErrInvalidFilter, part)
			}
			f.Payments = append(f.Payments, code)
		}
	}
	return f, nil
}

func printTables(out io.Writer, tables []export.Table) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, t := range tables {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "== %s\n", t.Name)
		fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
		for _, row := range t.Rows {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = cell(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
	}
	return tw.Flush()
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	default:
		return fmt.Sprint(v)
	}
}

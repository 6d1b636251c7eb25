package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-dashboard/internal/taxi"
)

const tripsCSV = `tpep_pickup_datetime,tpep_dropoff_datetime,trip_distance,PULocationID,DOLocationID,payment_type,fare_amount
2024-01-09 08:00:00,2024-01-09 08:05:00,2.0,1,2,1,10.0
2024-01-09 09:00:00,2024-01-09 09:04:00,3.0,2,1,2,0
2024-01-10 08:15:00,2024-01-10 08:21:00,4.0,1,2,,15.0
`

func writeFixtures(t *testing.T) (trips, zones string) {
	t.Helper()
	dir := t.TempDir()
	trips = filepath.Join(dir, "trips.csv")
	zones = filepath.Join(dir, "zones.csv")
	require.NoError(t, os.WriteFile(trips, []byte(tripsCSV), 0o644))
	require.NoError(t, os.WriteFile(zones, []byte("LocationID,Zone\n1,Airport\n2,Midtown\n"), 0o644))
	return trips, zones
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReportPrintsTables(t *testing.T) {
	trips, zones := writeFixtures(t)

	for _, path := range []string{"summary", "scan"} {
		t.Run(path, func(t *testing.T) {
			out, err := execute(t, "--trips", trips, "--zones", zones, "--path", path, "--bins", "4")
			require.NoError(t, err)
			for _, name := range []string{"== Headline", "== Top zones", "== Hourly fare", "== Distance", "== Payments", "== Heatmap"} {
				assert.Contains(t, out, name)
			}
			assert.Regexp(t, `total_trips\s+2\n`, out)
			assert.Regexp(t, `avg_fare\s+12\.50\n`, out)
			assert.Regexp(t, `Airport\s+2\n`, out)
			assert.Regexp(t, `5\s+Unknown\s+1\n`, out)
		})
	}
}

func TestReportEmptyFilter(t *testing.T) {
	trips, zones := writeFixtures(t)
	out, err := execute(t, "--trips", trips, "--zones", zones, "--hour-from", "20", "--hour-to", "21")
	require.NoError(t, err)
	assert.Equal(t, "No data for the selected filters.\n", out)
}

func TestReportInvalidFilter(t *testing.T) {
	trips, zones := writeFixtures(t)

	_, err := execute(t, "--trips", trips, "--zones", zones, "--hour-from", "9", "--hour-to", "8")
	assert.ErrorIs(t, err, taxi.ErrInvalidFilter)

	_, err = execute(t, "--trips", trips, "--zones", zones, "--payment", "")
	assert.ErrorIs(t, err, taxi.ErrInvalidFilter)

	_, err = execute(t, "--trips", trips, "--zones", zones, "--bins", "7")
	assert.ErrorIs(t, err, taxi.ErrInvalidFilter)
}

func TestReportWritesWorkbook(t *testing.T) {
	trips, zones := writeFixtures(t)
	xlsx := filepath.Join(t.TempDir(), "report.xlsx")

	out, err := execute(t, "--trips", trips, "--zones", zones, "--xlsx", xlsx)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+xlsx)
	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

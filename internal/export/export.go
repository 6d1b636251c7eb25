// Package export renders a dashboard result as plain tables and as an xlsx
// workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"taxi-dashboard/internal/engine"
)

// Table is one named output with a fixed column schema.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Tables lists the headline metrics followed by the six dashboard tables.
// Null values stay nil.
func Tables(res *engine.Result) []Table {
	h := res.Headline
	tables := []Table{
		{
			Name:   "Headline",
			Header: []string{"metric", "value"},
			Rows: [][]any{
				{"total_trips", h.TotalTrips},
				{"avg_fare", h.AvgFare},
				{"total_revenue", h.TotalRevenue},
				{"avg_distance", h.AvgDistance},
				{"avg_duration_min", h.AvgDuration},
			},
		},
		{Name: "Top zones", Header: []string{"zone", "trips"}},
		{Name: "Hourly fare", Header: []string{"hour", "trips", "avg_fare"}},
		{Name: "Distance", Header: []string{"bin", "low", "high", "trips"}},
		{Name: "Payments", Header: []string{"payment_type", "label", "trips"}},
		{Name: "Heatmap", Header: []string{"weekday", "hour", "trips"}},
	}
	for _, z := range res.TopZones {
		var name any
		if z.Zone != nil {
			name = *z.Zone
		}
		tables[1].Rows = append(tables[1].Rows, []any{name, z.Trips})
	}
	for _, hf := range res.HourlyFare {
		var avg any
		if hf.AvgFare != nil {
			avg = *hf.AvgFare
		}
		tables[2].Rows = append(tables[2].Rows, []any{hf.Hour, hf.Trips, avg})
	}
	for _, b := range res.Distance {
		tables[3].Rows = append(tables[3].Rows, []any{b.Bin, b.Low, b.High, b.Trips})
	}
	for _, p := range res.Payments {
		tables[4].Rows = append(tables[4].Rows, []any{p.PaymentType, p.Label, p.Trips})
	}
	for _, c := range res.Heatmap {
		tables[5].Rows = append(tables[5].Rows, []any{c.Weekday.String(), c.Hour, c.Trips})
	}
	return tables
}

// Workbook builds a workbook with one sheet per table. The caller closes it.
func Workbook(res *engine.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	for i, t := range Tables(res) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.Name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeSheet(f, t); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", t.Name, err)
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, t Table) error {
	for i, name := range t.Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(t.Name, cell, name); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c, val := range row {
			if val == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(t.Name, cell, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// Write streams the workbook to w.
func Write(w io.Writer, res *engine.Result) error {
	f, err := Workbook(res)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveAs writes the workbook to path.
func SaveAs(path string, res *engine.Result) error {
	f, err := Workbook(res)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

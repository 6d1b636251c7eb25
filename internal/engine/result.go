package engine

import "taxi-dashboard/internal/taxi"

// TopN is how many pickup zones the dashboard ranks.
const TopN = 10

// Headline holds the top-line metrics for a filter.
type Headline struct {
	TotalTrips   int64   `json:"total_trips"`
	AvgFare      float64 `json:"avg_fare"`
	TotalRevenue float64 `json:"total_revenue"`
	AvgDistance  float64 `json:"avg_distance"`
	AvgDuration  float64 `json:"avg_duration"` // minutes
}

// ZoneCount is one row of the top pickup zones table. Zone is nil for trips
// whose location id had no lookup entry.
type ZoneCount struct {
	Zone  *string `json:"zone"`
	Trips int64   `json:"trips"`
}

// HourlyFare is one point of the fare-by-hour curve. AvgFare is nil for an
// hour without trips.
type HourlyFare struct {
	Hour    int      `json:"hour"`
	Trips   int64    `json:"trips"`
	AvgFare *float64 `json:"avg_fare"`
}

type DistanceBin struct {
	Bin   int     `json:"bin"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Trips int64   `json:"trips"`
}

type PaymentCount struct {
	PaymentType int64  `json:"payment_type"`
	Label       string `json:"label"`
	Trips       int64  `json:"trips"`
}

type HeatCell struct {
	Weekday taxi.Weekday `json:"weekday"`
	Hour    int          `json:"hour"`
	Trips   int64        `json:"trips"`
}

// Result bundles every dashboard output for one filter. A stored Result is
// shared between callers and must be treated as read-only.
type Result struct {
	Filter     Filter         `json:"filter"`
	Headline   Headline       `json:"headline"`
	TopZones   []ZoneCount    `json:"top_zones"`
	HourlyFare []HourlyFare   `json:"hourly_fare"`
	Distance   []DistanceBin  `json:"distance"`
	Payments   []PaymentCount `json:"payments"`
	Heatmap    []HeatCell     `json:"heatmap"`
}

// Package models contains data structures used throughout the application
package models

import "time"

// MgdlToMmolFactor converts mg/dL to mmol/L
const MgdlToMmolFactor = 0.0555

// Unit labels
const (
	UnitMgdl  = "mg/dL"
	UnitMmolL = "mmol/L"
)

// RawReading is a glucose record as returned by the Dexcom Share API
type RawReading struct {
	WT    string `json:"WT"` // Wall time, e.g. "Date(1700000000000)"
	ST    string `json:"ST"` // System time
	DT    string `json:"DT"` // Display time with zone offset
	Value *int   `json:"Value"`
	Trend string `json:"Trend"`
}

// VendorError is the body Dexcom returns alongside a failed request
type VendorError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// Reading is a normalized glucose reading
type Reading struct {
	Value           int       `json:"value"`          // mg/dL
	PreviousValue   *int      `json:"previous_value"` // nil when only one reading was available
	ValueDifference *int      `json:"value_difference"`
	TrendDirection  string    `json:"trend_direction"` // Raw vendor trend code
	Trend           TrendInfo `json:"trend"`
	Time            time.Time `json:"time"`
	TimeAgo         string    `json:"read"`
	MinutesAgo      int       `json:"minutes_ago"`
	Status          Status    `json:"status"`
}

// ValueMmolL returns the glucose value in mmol/L
func (r *Reading) ValueMmolL() float64 {
	return float64(r.Value) * MgdlToMmolFactor
}

// IsStale reports whether the reading is older than the given number of minutes
func (r *Reading) IsStale(minutes int) bool {
	return r.MinutesAgo > minutes
}

// Status classifies a glucose value against the benchmarks
type Status string

// Glucose status values
const (
	StatusLow     Status = "LOW"
	StatusHigh    Status = "HIGH"
	StatusInRange Status = "IN RANGE"
)

// Benchmarks holds the low/high thresholds in mg/dL
type Benchmarks struct {
	Low  int `json:"low" yaml:"low" mapstructure:"low"`
	High int `json:"high" yaml:"high" mapstructure:"high"`
}

// DefaultBenchmarks returns the stock thresholds
func DefaultBenchmarks() Benchmarks {
	return Benchmarks{Low: 60, High: 240}
}

// Classify returns the status for a glucose value.
// Values equal to a threshold are in range.
func (b Benchmarks) Classify(mgdl int) Status {
	switch {
	case mgdl < b.Low:
		return StatusLow
	case mgdl > b.High:
		return StatusHigh
	default:
		return StatusInRange
	}
}

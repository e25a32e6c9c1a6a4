package dexcom

import (
	"regexp"
	"strconv"
	"time"

	"github.com/mrcode/glucose-share/internal/models"
)

// Vendor timestamps look like "Date(1700000000000)" or "Date(1700000000000-0500)"
var epochPattern = regexp.MustCompile(`\d+`)

// parseVendorTime extracts the epoch milliseconds from a vendor date token
func parseVendorTime(token string) (time.Time, error) {
	match := epochPattern.FindString(token)
	if match == "" {
		return time.Time{}, &MalformedReadingError{Field: "WT"}
	}

	ms, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return time.Time{}, &MalformedReadingError{Field: "WT"}
	}

	return time.UnixMilli(ms), nil
}

func (c *Client) formatReading(raw models.RawReading) (*models.Reading, error) {
	return formatReading(raw, c.now(), c.benchmarks)
}

// formatReading normalizes a raw reading. Time-ago fields are relative to now.
func formatReading(raw models.RawReading, now time.Time, benchmarks models.Benchmarks) (*models.Reading, error) {
	switch {
	case raw.WT == "":
		return nil, &MalformedReadingError{Field: "WT"}
	case raw.Value == nil:
		return nil, &MalformedReadingError{Field: "Value"}
	case raw.Trend == "":
		return nil, &MalformedReadingError{Field: "Trend"}
	}

	readingTime, err := parseVendorTime(raw.WT)
	if err != nil {
		return nil, err
	}

	elapsed := now.Sub(readingTime)

	return &models.Reading{
		Value:          *raw.Value,
		TrendDirection: raw.Trend,
		Trend:          models.LookupTrend(raw.Trend),
		Time:           readingTime,
		TimeAgo:        models.TimeAgo(elapsed),
		MinutesAgo:     models.MinutesAgo(elapsed),
		Status:         benchmarks.Classify(*raw.Value),
	}, nil
}

package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Field parsers never fail: text that cannot be interpreted comes back as nil
// so a dirty export degrades to unknown values instead of aborting the file.

// ParseFloat parses a measurement. Empty, "nan", infinite and non-numeric text is absent.
func ParseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseInt parses an integer through a float so "12.0" is accepted; the
// fraction is truncated toward zero.
func ParseInt(s string) *int64 {
	f := ParseFloat(s)
	if f == nil {
		return nil
	}
	t := math.Trunc(*f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return nil
	}
	v := int64(t)
	return &v
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. A trailing Z means UTC, a
// missing offset is taken as UTC, and the result is always in UTC.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

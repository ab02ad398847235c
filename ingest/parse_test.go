package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFloat(t *testing.T) {
	absent := []string{"", " ", "nan", "NaN", " NAN ", "abc", "3.5.1", "inf", "-Infinity"}
	for _, in := range absent {
		assert.Nil(t, ParseFloat(in), "%q", in)
	}

	tests := map[string]float64{
		"3.5":    3.5,
		" -71 ":  -71,
		"1e3":    1000,
		"0":      0,
		"\t61.4": 61.4,
	}
	for in, want := range tests {
		got := ParseFloat(in)
		require.NotNil(t, got, "%q", in)
		assert.Equal(t, want, *got, "%q", in)
	}
}

func TestParseInt(t *testing.T) {
	absent := []string{"", "  ", "nan", "seven", "1e30", "-1e30"}
	for _, in := range absent {
		assert.Nil(t, ParseInt(in), "%q", in)
	}

	tests := map[string]int64{
		"12":    12,
		"12.0":  12,
		"12.9":  12,
		"-7.9":  -7,
		" -80 ": -80,
	}
	for in, want := range tests {
		got := ParseInt(in)
		require.NotNil(t, got, "%q", in)
		assert.Equal(t, want, *got, "%q", in)
	}
}

func TestParseTimestampZuluEqualsExplicitOffset(t *testing.T) {
	z := ParseTimestamp("2025-09-17T00:53:13Z")
	offset := ParseTimestamp("2025-09-17T00:53:13+00:00")

	require.NotNil(t, z)
	require.NotNil(t, offset)
	assert.True(t, z.Equal(*offset))
	assert.Equal(t, time.Date(2025, 9, 17, 0, 53, 13, 0, time.UTC), *z)
	assert.Equal(t, time.UTC, z.Location())
}

func TestParseTimestampFormats(t *testing.T) {
	want := time.Date(2025, 9, 17, 0, 53, 13, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{" 2025-09-17T00:53:13Z ", want},
		{"2025-09-17T02:53:13+02:00", want},
		{"2025-09-16T17:53:13-0700", want},
		{"2025-09-17 00:53:13", want},
		{"2025-09-17T00:53:13", want},
		{"2025-09-17T00:53:13.250Z", want.Add(250 * time.Millisecond)},
		{"2025-09-17T00:53", want.Add(-13 * time.Second)},
		{"2025-09-17", time.Date(2025, 9, 17, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got := ParseTimestamp(tt.in)
		require.NotNil(t, got, "%q", tt.in)
		assert.True(t, tt.want.Equal(*got), "%q: got %s", tt.in, got)
		assert.Equal(t, time.UTC, got.Location(), "%q", tt.in)
	}
}

func TestParseTimestampAbsent(t *testing.T) {
	for _, in := range []string{"", "   ", "yesterday", "2025-13-01T00:00:00Z", "17/09/2025", "{\"a\":1}"} {
		assert.Nil(t, ParseTimestamp(in), "%q", in)
	}
}

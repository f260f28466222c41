package tz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver("America/Chicago", zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestNewResolver_InvalidDefault(t *testing.T) {
	_, err := NewResolver("Mars/Olympus_Mons", zap.NewNop())
	assert.Error(t, err)
}

func TestResolver_Resolve(t *testing.T) {
	r := newResolver(t)

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Known timezone", input: "Asia/Kolkata", expected: "Asia/Kolkata"},
		{name: "Empty name uses default", input: "", expected: "America/Chicago"},
		{name: "Unknown name uses default", input: "Not/AZone", expected: "America/Chicago"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, r.Resolve(tc.input).String())
		})
	}
}

func TestResolver_ResolveCaches(t *testing.T) {
	r := newResolver(t)
	first := r.Resolve("Europe/Berlin")
	second := r.Resolve("Europe/Berlin")
	assert.Same(t, first, second)
}

func TestToUTC(t *testing.T) {
	chicago := newResolver(t).Default()

	testCases := []struct {
		name     string
		year     int
		month    time.Month
		day      int
		clock    time.Duration
		expected time.Time
	}{
		{
			name: "Daylight saving offset in July",
			year: 2023, month: time.July, day: 3,
			clock:    9 * time.Hour,
			expected: time.Date(2023, time.July, 3, 14, 0, 0, 0, time.UTC),
		},
		{
			name: "Standard offset in January",
			year: 2023, month: time.January, day: 16,
			clock:    9 * time.Hour,
			expected: time.Date(2023, time.January, 16, 15, 0, 0, 0, time.UTC),
		},
		{
			name: "Minutes and seconds",
			year: 2023, month: time.January, day: 16,
			clock:    23*time.Hour + 59*time.Minute + 59*time.Second,
			expected: time.Date(2023, time.January, 17, 5, 59, 59, 0, time.UTC),
		},
		{
			name: "Offset past midnight rolls over",
			year: 2023, month: time.January, day: 31,
			clock:    26 * time.Hour,
			expected: time.Date(2023, time.February, 1, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToUTC(tc.year, tc.month, tc.day, tc.clock, chicago)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

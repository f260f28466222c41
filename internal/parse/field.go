// Package parse converts raw feed fields into typed values.
package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"store-uptime-backend/internal/model"
)

// timestampLayout is the layout of observation timestamps. A fractional
// seconds field after the seconds is accepted by time.Parse.
const timestampLayout = "2006-01-02 15:04:05"

// StoreID returns the trimmed store id, which must not be empty.
func StoreID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty store id")
	}
	return s, nil
}

// Timestamp parses "YYYY-MM-DD HH:MM:SS[.ffffff][ UTC]" as a UTC instant.
func Timestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "UTC"))
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

// Status normalizes a poll status. Only active and inactive are accepted.
func Status(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case model.StatusActive, model.StatusInactive:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// DayOfWeek parses a day index, 0 = Monday ... 6 = Sunday.
func DayOfWeek(raw string) (int, error) {
	d, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("unable to parse day of week %q: %w", raw, err)
	}
	if d < 0 || d > 6 {
		return 0, fmt.Errorf("day of week %d out of range", d)
	}
	return d, nil
}

// ClockOffset parses an "HH:MM:SS" (or "HH:MM") wall-clock time into an
// offset from midnight.
func ClockOffset(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("unable to parse time of day %q", raw)
}

// Clock validates a local wall-clock time and returns it as "HH:MM:SS".
func Clock(raw string) (string, error) {
	d, err := ClockOffset(raw)
	if err != nil {
		return "", err
	}
	return time.Time{}.Add(d).Format("15:04:05"), nil
}

// TimezoneName returns the trimmed timezone name. Names are resolved later,
// so an unknown but non-empty name is accepted.
func TimezoneName(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty timezone name")
	}
	return s, nil
}

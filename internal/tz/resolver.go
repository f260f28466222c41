// Package tz converts store-local wall-clock times to UTC instants.
package tz

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Resolver loads IANA locations by name, falling back to a default
// location for unknown or empty names. Loaded locations are cached.
type Resolver struct {
	fallback     *time.Location
	fallbackName string
	locations    *cache.Cache
	log          *zap.Logger
}

// NewResolver creates a Resolver whose fallback is defaultName. The default
// itself must be loadable.
func NewResolver(defaultName string, log *zap.Logger) (*Resolver, error) {
	loc, err := time.LoadLocation(defaultName)
	if err != nil {
		return nil, fmt.Errorf("failed to load default timezone %q: %w", defaultName, err)
	}
	r := &Resolver{
		fallback:     loc,
		fallbackName: defaultName,
		locations:    cache.New(cache.NoExpiration, 0),
		log:          log,
	}
	r.locations.Set(defaultName, loc, cache.NoExpiration)
	return r, nil
}

// Default returns the fallback location.
func (r *Resolver) Default() *time.Location {
	return r.fallback
}

// Resolve returns the location for name, or the default location when name
// is empty or unknown to the timezone database.
func (r *Resolver) Resolve(name string) *time.Location {
	if name == "" {
		return r.fallback
	}
	if loc, ok := r.locations.Get(name); ok {
		return loc.(*time.Location)
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		r.log.Warn("unknown timezone, using default",
			zap.String("timezone", name),
			zap.String("default", r.fallbackName),
			zap.Error(err))
		loc = r.fallback
	}
	r.locations.Set(name, loc, cache.NoExpiration)
	return loc
}

// ToUTC returns the UTC instant of the wall-clock time clock (an offset from
// local midnight) on the calendar date year-month-day in loc. The offset rule
// in effect on that date applies. Offsets of 24h or more roll into the
// following days.
func ToUTC(year int, month time.Month, day int, clock time.Duration, loc *time.Location) time.Time {
	days := int(clock / (24 * time.Hour))
	clock -= time.Duration(days) * 24 * time.Hour

	h := int(clock / time.Hour)
	m := int(clock % time.Hour / time.Minute)
	s := int(clock % time.Minute / time.Second)
	return time.Date(year, month, day+days, h, m, s, 0, loc).UTC()
}

package uptime

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"store-uptime-backend/internal/model"
	"store-uptime-backend/internal/tz"
)

// Trailing window lengths, all ending at the report anchor.
const (
	LastHour = time.Hour
	LastDay  = 24 * time.Hour
	LastWeek = 7 * 24 * time.Hour
)

// Row is the per-store report line. Hour values are in minutes, day and
// week values in hours, rounded to two decimals.
type Row struct {
	StoreID          string
	UptimeLastHour   float64
	UptimeLastDay    float64
	UptimeLastWeek   float64
	DowntimeLastHour float64
	DowntimeLastDay  float64
	DowntimeLastWeek float64
}

// Aggregate evaluates the three trailing windows ending at now. obs must be
// sorted and should cover at least the last week.
func Aggregate(storeID string, obs []Observation, sched Schedule, now time.Time) Row {
	hour := Extrapolate(obs, sched, Trailing(now, LastHour))
	dayRes := Extrapolate(obs, sched, Trailing(now, LastDay))
	week := Extrapolate(obs, sched, Trailing(now, LastWeek))

	return Row{
		StoreID:          storeID,
		UptimeLastHour:   round2(hour.UptimeSeconds / 60),
		UptimeLastDay:    round2(dayRes.UptimeSeconds / 3600),
		UptimeLastWeek:   round2(week.UptimeSeconds / 3600),
		DowntimeLastHour: round2(hour.DowntimeSeconds / 60),
		DowntimeLastDay:  round2(dayRes.DowntimeSeconds / 3600),
		DowntimeLastWeek: round2(week.DowntimeSeconds / 3600),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Source provides the per-store inputs of the aggregator.
type Source interface {
	Observations(ctx context.Context, storeID string, since time.Time) ([]model.Observation, error)
	BusinessHours(ctx context.Context, storeID string) ([]model.BusinessHours, error)
	Timezone(ctx context.Context, storeID string) (string, error)
}

// Aggregator loads one store's data and computes its report row.
type Aggregator struct {
	src      Source
	resolver *tz.Resolver
	log      *zap.Logger
}

// NewAggregator creates an Aggregator reading from src.
func NewAggregator(src Source, resolver *tz.Resolver, log *zap.Logger) *Aggregator {
	return &Aggregator{src: src, resolver: resolver, log: log}
}

// StoreRow computes the report row of storeID anchored at now.
func (a *Aggregator) StoreRow(ctx context.Context, storeID string, now time.Time) (Row, error) {
	sched, err := a.schedule(ctx, storeID)
	if err != nil {
		return Row{}, err
	}

	records, err := a.src.Observations(ctx, storeID, now.Add(-LastWeek))
	if err != nil {
		return Row{}, fmt.Errorf("failed to load observations for store %s: %w", storeID, err)
	}
	obs := make([]Observation, len(records))
	for i, r := range records {
		obs[i] = Observation{Timestamp: r.TimestampUTC.UTC(), Active: r.Status == model.StatusActive}
	}
	SortObservations(obs)

	return Aggregate(storeID, obs, sched, now), nil
}

func (a *Aggregator) schedule(ctx context.Context, storeID string) (Schedule, error) {
	name, err := a.src.Timezone(ctx, storeID)
	if err != nil {
		return Schedule{}, fmt.Errorf("failed to load timezone for store %s: %w", storeID, err)
	}
	loc := a.resolver.Resolve(name)

	hours, err := a.src.BusinessHours(ctx, storeID)
	if err != nil {
		return Schedule{}, fmt.Errorf("failed to load business hours for store %s: %w", storeID, err)
	}

	intervals := make([]Interval, 0, len(hours))
	for _, h := range hours {
		iv, err := toInterval(h)
		if err != nil {
			a.log.Warn("skipping business hours row", zap.String("store_id", storeID), zap.Error(err))
			continue
		}
		intervals = append(intervals, iv)
	}

	// Unparseable rows still count as a configured schedule.
	return Schedule{Location: loc, Intervals: intervals, AlwaysOpen: len(hours) == 0}, nil
}

func toInterval(h model.BusinessHours) (Interval, error) {
	if h.DayOfWeek < 0 || h.DayOfWeek > 6 {
		return Interval{}, fmt.Errorf("invalid day of week %d", h.DayOfWeek)
	}
	start, err := ParseClock(h.StartTimeLocal)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock(h.EndTimeLocal)
	if err != nil {
		return Interval{}, err
	}
	return Interval{DayOfWeek: h.DayOfWeek, Start: start, End: end}, nil
}

// Package uptime turns sparse status polls into uptime and downtime durations
// over trailing windows, restricted to a store's local business hours.
package uptime

import (
	"sort"
	"time"

	"store-uptime-backend/internal/parse"
	"store-uptime-backend/internal/tz"
)

const day = 24 * time.Hour

// Observation is one poll of a store's status.
type Observation struct {
	Timestamp time.Time
	Active    bool
}

// Interval is a weekly business-hours interval. Start and End are offsets
// from local midnight. End before Start means the interval runs past local
// midnight into the next calendar day.
type Interval struct {
	DayOfWeek int // 0 = Monday ... 6 = Sunday
	Start     time.Duration
	End       time.Duration
}

// CrossesMidnight reports whether the interval ends on the following day.
func (iv Interval) CrossesMidnight() bool {
	return iv.End < iv.Start
}

// Schedule is the business-hours configuration of a single store.
type Schedule struct {
	Location   *time.Location
	Intervals  []Interval
	AlwaysOpen bool
}

// NewSchedule builds a Schedule. A store without any interval is open every
// hour of every day.
func NewSchedule(loc *time.Location, intervals []Interval) Schedule {
	return Schedule{
		Location:   loc,
		Intervals:  intervals,
		AlwaysOpen: len(intervals) == 0,
	}
}

// Window is a closed UTC time range [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// Trailing returns the window of length d ending at end.
func Trailing(end time.Time, d time.Duration) Window {
	return Window{Start: end.Add(-d), End: end}
}

// Duration is the wall-clock length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t lies in the window, endpoints included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Result holds the extrapolated seconds for one window.
type Result struct {
	UptimeSeconds   float64
	DowntimeSeconds float64
}

func (r *Result) add(o Result) {
	r.UptimeSeconds += o.UptimeSeconds
	r.DowntimeSeconds += o.DowntimeSeconds
}

// Extrapolate computes uptime and downtime within w. obs must be sorted by
// timestamp; observations outside w are ignored. Each open interval counts
// the polls whose timestamp lies within it, whatever their UTC date, so an
// interval crossing UTC midnight keeps the polls made after midnight.
func Extrapolate(obs []Observation, sched Schedule, w Window) Result {
	inWindow := Clip(obs, w)
	if sched.AlwaysOpen {
		return distribute(w.Duration(), inWindow)
	}

	byDay := make(map[int][]Interval, 7)
	for _, iv := range sched.Intervals {
		byDay[iv.DayOfWeek] = append(byDay[iv.DayOfWeek], iv)
	}

	var total Result
	for _, open := range OpenIntervals(byDay, sched.Location, w) {
		total.add(distribute(open.Duration(), Clip(inWindow, open)))
	}
	return total
}

// OpenIntervals returns the business-hours intervals overlapping w as UTC
// windows clipped to w. Calendar dates are walked day by day from the UTC
// date of w's start to that of its end, widened by one day on each side so
// that local days offset from UTC are covered. A date whose weekday has no
// interval contributes nothing.
func OpenIntervals(byDay map[int][]Interval, loc *time.Location, w Window) []Window {
	var out []Window
	y, m, d := w.Start.UTC().Date()
	ey, em, ed := w.End.UTC().Date()
	last := time.Date(ey, em, ed+1, 0, 0, 0, 0, time.UTC)
	for date := time.Date(y, m, d-1, 0, 0, 0, 0, time.UTC); !date.After(last); date = date.AddDate(0, 0, 1) {
		intervals := byDay[weekday(date)]
		if len(intervals) == 0 {
			continue
		}

		year, month, dom := date.Date()
		for _, iv := range intervals {
			end := iv.End
			if iv.CrossesMidnight() {
				end += day
			}
			open := Window{
				Start: tz.ToUTC(year, month, dom, iv.Start, loc),
				End:   tz.ToUTC(year, month, dom, end, loc),
			}

			if open.Start.Before(w.Start) {
				open.Start = w.Start
			}
			if open.End.After(w.End) {
				open.End = w.End
			}
			if !open.End.After(open.Start) {
				continue
			}
			out = append(out, open)
		}
	}
	return out
}

// Clip returns the sub-slice of sorted obs that lies within w.
func Clip(obs []Observation, w Window) []Observation {
	lo := sort.Search(len(obs), func(i int) bool { return !obs[i].Timestamp.Before(w.Start) })
	hi := sort.Search(len(obs), func(i int) bool { return obs[i].Timestamp.After(w.End) })
	if lo >= hi {
		return nil
	}
	return obs[lo:hi]
}

// distribute splits d by the share of active polls. Without polls the store
// is assumed down for the whole duration.
func distribute(d time.Duration, obs []Observation) Result {
	seconds := d.Seconds()
	if len(obs) == 0 {
		return Result{DowntimeSeconds: seconds}
	}

	active := 0
	for _, o := range obs {
		if o.Active {
			active++
		}
	}
	ratio := float64(active) / float64(len(obs))
	return Result{
		UptimeSeconds:   seconds * ratio,
		DowntimeSeconds: seconds * (1 - ratio),
	}
}

// weekday maps a date to 0 = Monday ... 6 = Sunday.
func weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// SortObservations orders obs by timestamp in place, keeping the input
// order of equal timestamps.
func SortObservations(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Timestamp.Before(obs[j].Timestamp) })
}

// ParseClock parses a business-hours time with the same rules ingestion
// applies to the hours feed.
func ParseClock(s string) (time.Duration, error) {
	return parse.ClockOffset(s)
}

// Package ingest loads the observation, business-hours and timezone CSV
// feeds into the store.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"store-uptime-backend/internal/model"
	"store-uptime-backend/internal/parse"
	"store-uptime-backend/internal/store"
)

// Feed file names inside the data directory.
const (
	StatusFile    = "store_status.csv"
	HoursFile     = "menu_hours.csv"
	TimezonesFile = "timezones.csv"
)

// Stats counts the rows of one feed.
type Stats struct {
	Loaded  int
	Skipped int
}

// Loader parses feeds and inserts them in batches.
type Loader struct {
	store     store.Store
	batchSize int
	log       *zap.Logger
}

// NewLoader creates a Loader writing to st.
func NewLoader(st store.Store, batchSize int, log *zap.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Loader{store: st, batchSize: batchSize, log: log}
}

// LoadObservations reads store_id, status and timestamp_utc columns.
func (l *Loader) LoadObservations(ctx context.Context, r io.Reader) (Stats, error) {
	b := newBatcher(l.batchSize, func(rows []model.Observation) error {
		return l.store.InsertObservations(ctx, rows)
	})
	stats, err := l.each(r, StatusFile, []string{"store_id", "status", "timestamp_utc"}, func(f fields) error {
		storeID, err := parse.StoreID(f.get("store_id"))
		if err != nil {
			return err
		}
		status, err := parse.Status(f.get("status"))
		if err != nil {
			return err
		}
		ts, err := parse.Timestamp(f.get("timestamp_utc"))
		if err != nil {
			return err
		}
		return b.add(model.Observation{StoreID: storeID, Status: status, TimestampUTC: ts})
	})
	if err != nil {
		return stats, err
	}
	return stats, b.flush()
}

// LoadBusinessHours reads store_id, dayOfWeek, start_time_local and
// end_time_local columns.
func (l *Loader) LoadBusinessHours(ctx context.Context, r io.Reader) (Stats, error) {
	b := newBatcher(l.batchSize, func(rows []model.BusinessHours) error {
		return l.store.InsertBusinessHours(ctx, rows)
	})
	stats, err := l.each(r, HoursFile, []string{"store_id", "dayofweek", "start_time_local", "end_time_local"}, func(f fields) error {
		storeID, err := parse.StoreID(f.get("store_id"))
		if err != nil {
			return err
		}
		day, err := parse.DayOfWeek(f.get("dayofweek"))
		if err != nil {
			return err
		}
		start, err := parse.Clock(f.get("start_time_local"))
		if err != nil {
			return err
		}
		end, err := parse.Clock(f.get("end_time_local"))
		if err != nil {
			return err
		}
		return b.add(model.BusinessHours{StoreID: storeID, DayOfWeek: day, StartTimeLocal: start, EndTimeLocal: end})
	})
	if err != nil {
		return stats, err
	}
	return stats, b.flush()
}

// LoadTimezones reads store_id and timezone_str columns. A store listed
// more than once keeps its last timezone.
func (l *Loader) LoadTimezones(ctx context.Context, r io.Reader) (Stats, error) {
	var order []string
	latest := make(map[string]string)
	stats, err := l.each(r, TimezonesFile, []string{"store_id", "timezone_str"}, func(f fields) error {
		storeID, err := parse.StoreID(f.get("store_id"))
		if err != nil {
			return err
		}
		name, err := parse.TimezoneName(f.get("timezone_str"))
		if err != nil {
			return err
		}
		if _, seen := latest[storeID]; !seen {
			order = append(order, storeID)
		}
		latest[storeID] = name
		return nil
	})
	if err != nil {
		return stats, err
	}

	b := newBatcher(l.batchSize, func(rows []model.StoreTimezone) error {
		return l.store.UpsertTimezones(ctx, rows)
	})
	for _, id := range order {
		if err := b.add(model.StoreTimezone{StoreID: id, TimezoneStr: latest[id]}); err != nil {
			return stats, err
		}
	}
	return stats, b.flush()
}

// each runs fn for every data row of r. Errors returned by fn for a row
// skip that row, except store errors from a batch flush which abort.
func (l *Loader) each(r io.Reader, feed string, required []string, fn func(fields) error) (Stats, error) {
	var stats Stats
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	head, err := cr.Read()
	if err != nil {
		return stats, fmt.Errorf("failed to read %s header: %w", feed, err)
	}
	columns, err := indexColumns(head, required)
	if err != nil {
		return stats, fmt.Errorf("invalid %s header: %w", feed, err)
	}

	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				l.skip(feed, line, err)
				stats.Skipped++
				continue
			}
			return stats, fmt.Errorf("failed to read %s: %w", feed, err)
		}

		f := fields{columns: columns, record: record}
		if !f.complete() {
			l.skip(feed, line, fmt.Errorf("expected %d columns, got %d", len(head), len(record)))
			stats.Skipped++
			continue
		}
		if err := fn(f); err != nil {
			var storeErr storeError
			if errors.As(err, &storeErr) {
				return stats, storeErr.err
			}
			l.skip(feed, line, err)
			stats.Skipped++
			continue
		}
		stats.Loaded++
	}

	if stats.Skipped > 0 {
		l.log.Warn("skipped malformed rows", zap.String("feed", feed), zap.Int("skipped", stats.Skipped))
	}
	return stats, nil
}

func (l *Loader) skip(feed string, line int, err error) {
	l.log.Debug("skipping row", zap.String("feed", feed), zap.Int("line", line), zap.Error(err))
}

// fields gives access to a record by lower-cased column name.
type fields struct {
	columns map[string]int
	record  []string
}

func (f fields) get(name string) string {
	return f.record[f.columns[name]]
}

func (f fields) complete() bool {
	for _, i := range f.columns {
		if i >= len(f.record) {
			return false
		}
	}
	return true
}

func indexColumns(head, required []string) (map[string]int, error) {
	all := make(map[string]int, len(head))
	for i, h := range head {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := all[name]; !dup {
			all[name] = i
		}
	}
	columns := make(map[string]int, len(required))
	var missing []string
	for _, name := range required {
		i, ok := all[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		columns[name] = i
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

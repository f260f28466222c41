package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"store-uptime-backend/internal/uptime"
)

// Header is the column order of the report table.
var Header = []string{
	"store_id",
	"uptime_last_hour",
	"uptime_last_day",
	"uptime_last_week",
	"downtime_last_hour",
	"downtime_last_day",
	"downtime_last_week",
}

// ArtifactName is the file name of a report's CSV artifact.
func ArtifactName(reportID string) string {
	return fmt.Sprintf("report_%s.csv", reportID)
}

// EncodeCSV renders rows as CSV with a header line. The output depends only
// on rows, so equal inputs give byte-identical tables.
func EncodeCSV(rows []uptime.Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.StoreID,
			formatFloat(r.UptimeLastHour),
			formatFloat(r.UptimeLastDay),
			formatFloat(r.UptimeLastWeek),
			formatFloat(r.DowntimeLastHour),
			formatFloat(r.DowntimeLastDay),
			formatFloat(r.DowntimeLastWeek),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode report table: %w", err)
	}
	return buf.Bytes(), nil
}

// formatFloat prints the shortest representation, keeping at least one
// decimal place (60 -> "60.0").
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

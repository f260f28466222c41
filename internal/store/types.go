package store

import "errors"

var (
	// ErrReportNotFound is returned when no report has the given id.
	ErrReportNotFound = errors.New("report not found")
	// ErrReportNotRunning is returned when finishing a report that already
	// reached a terminal state.
	ErrReportNotRunning = errors.New("report is not running")
)

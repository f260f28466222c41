package report

import (
	"time"

	"store-uptime-backend/internal/model"
)

// Job is an immutable snapshot of a report job.
type Job struct {
	ID             string
	Status         model.ReportStatus
	CreatedAt      time.Time
	CompletedAt    *time.Time
	ResultLocation string
}

func jobFromModel(r model.Report) Job {
	job := Job{
		ID:          r.ReportID,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.ResultLocation != nil {
		job.ResultLocation = *r.ResultLocation
	}
	return job
}

// finished returns a copy of j in a terminal status.
func (j Job) finished(status model.ReportStatus, at time.Time, location string) Job {
	j.Status = status
	j.CompletedAt = &at
	j.ResultLocation = location
	return j
}

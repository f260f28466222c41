package api

import (
	"context"

	"go.uber.org/zap"

	"store-uptime-backend/internal/report"
)

// Reports is the report job surface used by the handlers.
type Reports interface {
	Create(ctx context.Context) (string, error)
	GetStatus(ctx context.Context, id string) (report.Job, error)
	Artifact(ctx context.Context, job report.Job) ([]byte, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	reports Reports
	db      Pinger
	log     *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(reports Reports, db Pinger, log *zap.Logger) *Handler {
	return &Handler{
		reports: reports,
		db:      db,
		log:     log,
	}
}

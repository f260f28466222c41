// Package sink persists finished report artifacts and reads them back.
package sink

import (
	"context"
	"errors"
	"fmt"

	"store-uptime-backend/config"
)

// ErrArtifactNotFound is returned when a location has no artifact.
var ErrArtifactNotFound = errors.New("artifact not found")

// Sink stores report artifacts under a name and returns an opaque location
// from which they can be read back.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
}

// New builds the sink selected by cfg.Backend.
func New(ctx context.Context, cfg config.SinkConfig) (Sink, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileSink(cfg.Dir)
	case "s3":
		return NewS3Sink(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.Backend)
	}
}

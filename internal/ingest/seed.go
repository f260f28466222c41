package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"store-uptime-backend/config"
	"store-uptime-backend/internal/store"
)

// Fetcher downloads and unpacks the dataset archive.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string) ([]string, error)
}

// Seeder populates an empty database from the feed directory.
type Seeder struct {
	cfg     config.IngestConfig
	store   store.Store
	loader  *Loader
	fetcher Fetcher
	log     *zap.Logger
}

// NewSeeder creates a Seeder. fetcher may be nil when no download is wanted.
func NewSeeder(cfg config.IngestConfig, st store.Store, fetcher Fetcher, log *zap.Logger) *Seeder {
	return &Seeder{
		cfg:     cfg,
		store:   st,
		loader:  NewLoader(st, cfg.BatchSize, log),
		fetcher: fetcher,
		log:     log,
	}
}

// feed is one CSV file and the table it fills.
type feed struct {
	file  string
	count func(context.Context) (int64, error)
	load  func(context.Context, io.Reader) (Stats, error)
}

func (s *Seeder) feeds() []feed {
	return []feed{
		{StatusFile, s.store.CountObservations, s.loader.LoadObservations},
		{HoursFile, s.store.CountBusinessHours, s.loader.LoadBusinessHours},
		{TimezonesFile, s.store.CountTimezones, s.loader.LoadTimezones},
	}
}

// SeedIfEmpty loads each feed whose table is still empty, so restarts never
// insert a feed twice. Missing feed files are downloaded first when a source
// URL is configured.
func (s *Seeder) SeedIfEmpty(ctx context.Context) error {
	var pending []feed
	for _, f := range s.feeds() {
		n, err := f.count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			s.log.Info("table already seeded, skipping feed", zap.String("feed", f.file), zap.Int64("rows", n))
			continue
		}
		pending = append(pending, f)
	}
	if len(pending) == 0 {
		return nil
	}

	if s.cfg.SourceURL != "" && s.fetcher != nil && s.anyMissing(pending) {
		if _, err := s.fetcher.Fetch(ctx, s.cfg.SourceURL, s.cfg.DataDir); err != nil {
			return err
		}
	}
	return s.load(ctx, s.cfg.DataDir, pending)
}

// LoadDir loads every feed present in dir. Absent feeds are skipped.
func (s *Seeder) LoadDir(ctx context.Context, dir string) error {
	return s.load(ctx, dir, s.feeds())
}

func (s *Seeder) anyMissing(feeds []feed) bool {
	for _, f := range feeds {
		if _, err := os.Stat(filepath.Join(s.cfg.DataDir, f.file)); errors.Is(err, os.ErrNotExist) {
			return true
		}
	}
	return false
}

func (s *Seeder) load(ctx context.Context, dir string, feeds []feed) error {
	for _, f := range feeds {
		path := filepath.Join(dir, f.file)
		file, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			s.log.Warn("feed file not found, skipping", zap.String("path", path))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}

		stats, err := f.load(ctx, file)
		file.Close()
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", f.file, err)
		}
		s.log.Info("feed loaded",
			zap.String("feed", f.file),
			zap.Int("loaded", stats.Loaded),
			zap.Int("skipped", stats.Skipped),
		)
	}
	return nil
}

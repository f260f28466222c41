// Package report runs report jobs: it creates the job record, computes every
// store's row on a bounded worker pool and publishes the finished table.
package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"store-uptime-backend/config"
	"store-uptime-backend/internal/metrics"
	"store-uptime-backend/internal/model"
	"store-uptime-backend/internal/sink"
	"store-uptime-backend/internal/store"
	"store-uptime-backend/internal/uptime"
)

// ErrQueueFull is returned by Create when no worker slot is available.
var ErrQueueFull = errors.New("report queue is full")

// ErrNotComplete is returned when asking for the artifact of an unfinished
// or failed report.
var ErrNotComplete = errors.New("report is not complete")

// Manager creates report jobs and executes them on a pool of workers.
type Manager struct {
	store   store.Store
	agg     *uptime.Aggregator
	sink    sink.Sink
	metrics *metrics.Metrics
	log     *zap.Logger

	size  int
	queue chan string
	wg    sync.WaitGroup

	// jobs holds the snapshots of jobs owned by this process until they
	// reach a terminal state.
	jobs sync.Map // report id -> *atomic.Pointer[Job]

	now   func() time.Time
	newID func() string
}

// NewManager creates a Manager. Call Start to launch its workers.
func NewManager(st store.Store, agg *uptime.Aggregator, sk sink.Sink, m *metrics.Metrics, cfg config.WorkerPoolConfig, log *zap.Logger) *Manager {
	size := cfg.Size
	if size <= 0 {
		size = 1
	}
	return &Manager{
		store:   st,
		agg:     agg,
		sink:    sk,
		metrics: m,
		log:     log,
		size:    size,
		queue:   make(chan string, max(cfg.QueueSize, 0)),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Start launches the worker goroutines. They exit when ctx is done.
func (m *Manager) Start(ctx context.Context) {
	for i := 0; i < m.size; i++ {
		m.wg.Add(1)
		go m.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) worker(ctx context.Context, id int) {
	defer m.wg.Done()
	log := m.log.With(zap.Int("worker", id))
	log.Debug("report worker started")
	for {
		select {
		case reportID := <-m.queue:
			if err := m.Execute(ctx, reportID); err != nil {
				log.Error("report job failed", zap.String("report_id", reportID), zap.Error(err))
			}
		case <-ctx.Done():
			log.Debug("report worker shutting down")
			return
		}
	}
}

// Create records a new Running report and hands it to the worker pool. It
// returns the new report id without waiting for the computation. When the
// queue is full the report is marked Failed and ErrQueueFull is returned
// along with its id.
func (m *Manager) Create(ctx context.Context) (string, error) {
	job := Job{
		ID:        m.newID(),
		Status:    model.ReportRunning,
		CreatedAt: m.now().UTC(),
	}
	if err := m.store.CreateReport(ctx, &model.Report{
		ReportID:  job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}); err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}

	snapshot := new(atomic.Pointer[Job])
	snapshot.Store(&job)
	m.jobs.Store(job.ID, snapshot)
	m.metrics.ReportsTriggered.Inc()

	select {
	case m.queue <- job.ID:
		m.log.Info("report queued", zap.String("report_id", job.ID))
		return job.ID, nil
	default:
		m.log.Warn("report queue is full", zap.String("report_id", job.ID), zap.Int("queue_size", cap(m.queue)))
		if err := m.finish(context.WithoutCancel(ctx), job.ID, model.ReportFailed, ""); err != nil {
			m.log.Error("failed to mark rejected report", zap.String("report_id", job.ID), zap.Error(err))
		}
		return job.ID, ErrQueueFull
	}
}

// Execute computes report id and moves it to Complete, or to Failed when any
// step fails. The artifact is written before the status is committed, and
// removed again if the commit fails.
func (m *Manager) Execute(ctx context.Context, id string) error {
	start := time.Now()
	m.metrics.JobsInFlight.Inc()
	defer m.metrics.JobsInFlight.Dec()
	defer func() { m.metrics.ReportDuration.Observe(time.Since(start).Seconds()) }()

	log := m.log.With(zap.String("report_id", id))
	// The terminal write must land even if the worker is being stopped.
	finishCtx := context.WithoutCancel(ctx)

	location, err := m.safeGenerate(ctx, id)
	if err == nil {
		if err = m.finish(finishCtx, id, model.ReportComplete, location); err != nil {
			if delErr := m.sink.Delete(finishCtx, location); delErr != nil {
				log.Warn("failed to remove orphaned artifact", zap.String("location", location), zap.Error(delErr))
			}
		}
	}
	if err != nil {
		if finErr := m.finish(finishCtx, id, model.ReportFailed, ""); finErr != nil {
			log.Error("failed to mark report failed", zap.Error(finErr))
		}
		return err
	}

	log.Info("report complete", zap.String("location", location), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (m *Manager) safeGenerate(ctx context.Context, id string) (location string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("report generation panicked: %v", r)
		}
	}()
	return m.generate(ctx, id)
}

func (m *Manager) generate(ctx context.Context, id string) (string, error) {
	rows, err := m.rows(ctx)
	if err != nil {
		return "", err
	}
	table, err := EncodeCSV(rows)
	if err != nil {
		return "", err
	}
	location, err := m.sink.Put(ctx, ArtifactName(id), table)
	if err != nil {
		return "", fmt.Errorf("failed to store report artifact: %w", err)
	}
	return location, nil
}

// rows computes one row per store, anchored at the latest observation in
// the data set.
func (m *Manager) rows(ctx context.Context) ([]uptime.Row, error) {
	now, ok, err := m.store.LatestObservation(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	ids, err := m.store.StoreIDs(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]uptime.Row, 0, len(ids))
	for _, storeID := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := m.agg.StoreRow(ctx, storeID, now)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		m.metrics.StoresProcessed.Inc()
	}
	return rows, nil
}

// finish commits a terminal status and publishes the new snapshot.
func (m *Manager) finish(ctx context.Context, id string, status model.ReportStatus, location string) error {
	at := m.now().UTC()
	var loc *string
	if location != "" {
		loc = &location
	}
	if err := m.store.FinishReport(ctx, id, status, at, loc); err != nil {
		return err
	}
	m.metrics.ReportsFinished.WithLabelValues(string(status)).Inc()

	if v, ok := m.jobs.Load(id); ok {
		snapshot := v.(*atomic.Pointer[Job])
		next := snapshot.Load().finished(status, at, location)
		snapshot.Store(&next)
		// The database now holds the terminal state.
		m.jobs.Delete(id)
	}
	return nil
}

// GetStatus returns the current snapshot of report id. Jobs running in this
// process are answered from memory, everything else from the store.
// store.ErrReportNotFound is returned for unknown ids.
func (m *Manager) GetStatus(ctx context.Context, id string) (Job, error) {
	if v, ok := m.jobs.Load(id); ok {
		return *v.(*atomic.Pointer[Job]).Load(), nil
	}
	r, err := m.store.GetReport(ctx, id)
	if err != nil {
		return Job{}, err
	}
	return jobFromModel(r), nil
}

// Artifact reads the CSV table of a Complete job.
func (m *Manager) Artifact(ctx context.Context, job Job) ([]byte, error) {
	if job.Status != model.ReportComplete || job.ResultLocation == "" {
		return nil, ErrNotComplete
	}
	return m.sink.Get(ctx, job.ResultLocation)
}

// WarnStale logs reports left Running by a previous process. They are not
// resumed and keep polling as Running.
func (m *Manager) WarnStale(ctx context.Context) (int64, error) {
	n, err := m.store.CountReports(ctx, model.ReportRunning)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Warn("found reports left running by a previous process", zap.Int64("count", n))
	}
	return n, nil
}

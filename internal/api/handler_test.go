package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"store-uptime-backend/config"
	"store-uptime-backend/internal/model"
	"store-uptime-backend/internal/report"
	"store-uptime-backend/internal/store"
)

const table = "store_id,uptime_last_hour,uptime_last_day,uptime_last_week,downtime_last_hour,downtime_last_day,downtime_last_week\n" +
	"s1,60.0,24.0,168.0,0.0,0.0,0.0\n"

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeReports is an in-memory implementation of Reports.
type fakeReports struct {
	createID      string
	createErr     error
	jobs          map[string]report.Job
	statusErr     error
	artifact      []byte
	artifactErr   error
	artifactCalls int
}

func (f *fakeReports) Create(ctx context.Context) (string, error) {
	return f.createID, f.createErr
}

func (f *fakeReports) GetStatus(ctx context.Context, id string) (report.Job, error) {
	if f.statusErr != nil {
		return report.Job{}, f.statusErr
	}
	job, ok := f.jobs[id]
	if !ok {
		return report.Job{}, store.ErrReportNotFound
	}
	return job, nil
}

func (f *fakeReports) Artifact(ctx context.Context, job report.Job) ([]byte, error) {
	f.artifactCalls++
	return f.artifact, f.artifactErr
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestRouter(reports Reports, db Pinger) *gin.Engine {
	cfg := config.ServerConfig{RateLimitPerSec: 100, RateLimitBurst: 100, CacheTTL: time.Minute}
	return NewRouter(cfg, reports, db, prometheus.NewRegistry(), zap.NewNop())
}

func serve(r http.Handler, method, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, url, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestTriggerReport(t *testing.T) {
	testCases := []struct {
		name         string
		reports      *fakeReports
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Success",
			reports:      &fakeReports{createID: "abc"},
			expectedCode: http.StatusOK,
			expectedBody: `{"report_id":"abc"}`,
		},
		{
			name:         "Queue full",
			reports:      &fakeReports{createID: "abc", createErr: report.ErrQueueFull},
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: `{"error":"Report queue is full"}`,
		},
		{
			name:         "Store error",
			reports:      &fakeReports{createErr: errors.New("database is locked")},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Failed to trigger report"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(newTestRouter(tc.reports, fakePinger{}), http.MethodPost, "/trigger_report")
			assert.Equal(t, tc.expectedCode, w.Code)
			assert.JSONEq(t, tc.expectedBody, w.Body.String())
		})
	}
}

func TestGetReport_Statuses(t *testing.T) {
	reports := &fakeReports{
		jobs: map[string]report.Job{
			"running": {ID: "running", Status: model.ReportRunning},
			"failed":  {ID: "failed", Status: model.ReportFailed},
		},
	}
	r := newTestRouter(reports, fakePinger{})

	testCases := []struct {
		name         string
		url          string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Missing id",
			url:          "/get_report",
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"report_id is required"}`,
		},
		{
			name:         "Unknown format",
			url:          "/get_report?report_id=running&format=pdf",
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"format must be csv or xlsx"}`,
		},
		{
			name:         "Unknown id",
			url:          "/get_report?report_id=nope",
			expectedCode: http.StatusNotFound,
			expectedBody: `{"error":"Report not found"}`,
		},
		{
			name:         "Running",
			url:          "/get_report?report_id=running",
			expectedCode: http.StatusOK,
			expectedBody: `{"status":"Running"}`,
		},
		{
			name:         "Failed",
			url:          "/get_report?report_id=failed",
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Report generation failed"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, tc.url)
			assert.Equal(t, tc.expectedCode, w.Code)
			assert.JSONEq(t, tc.expectedBody, w.Body.String())
		})
	}
	assert.Zero(t, reports.artifactCalls)
}

func TestGetReport_StatusError(t *testing.T) {
	r := newTestRouter(&fakeReports{statusErr: errors.New("connection refused")}, fakePinger{})

	w := serve(r, http.MethodGet, "/get_report?report_id=x")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func completeReports() *fakeReports {
	return &fakeReports{
		jobs: map[string]report.Job{
			"done": {ID: "done", Status: model.ReportComplete, ResultLocation: "reports/report_done.csv"},
		},
		artifact: []byte(table),
	}
}

func TestGetReport_CSVDownload(t *testing.T) {
	reports := completeReports()
	r := newTestRouter(reports, fakePinger{})

	w := serve(r, http.MethodGet, "/get_report?report_id=done")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report_done.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, table, w.Body.String())

	// Repeated downloads are served from the cache.
	w = serve(r, http.MethodGet, "/get_report?report_id=done")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, table, w.Body.String())
	assert.Equal(t, 1, reports.artifactCalls)
}

func TestGetReport_XLSXDownload(t *testing.T) {
	r := newTestRouter(completeReports(), fakePinger{})

	w := serve(r, http.MethodGet, "/get_report?report_id=done&format=xlsx")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report_done.xlsx"`, w.Header().Get("Content-Disposition"))
	// XLSX files are zip archives.
	require.Greater(t, w.Body.Len(), 4)
	assert.Equal(t, "PK", w.Body.String()[:2])
}

func TestGetReport_MissingArtifact(t *testing.T) {
	reports := completeReports()
	reports.artifactErr = errors.New("artifact not found")
	r := newTestRouter(reports, fakePinger{})

	w := serve(r, http.MethodGet, "/get_report?report_id=done")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Report generation failed"}`, w.Body.String())
}

func TestHealthz(t *testing.T) {
	w := serve(newTestRouter(&fakeReports{}, fakePinger{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = serve(newTestRouter(&fakeReports{}, fakePinger{err: errors.New("down")}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "Test counter."})
	reg.MustRegister(counter)
	counter.Inc()

	r := NewRouter(config.ServerConfig{RateLimitPerSec: 1, RateLimitBurst: 1, CacheTTL: time.Minute}, &fakeReports{}, fakePinger{}, reg, zap.NewNop())
	w := serve(r, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_total 1")
}

func TestUnknownRoute(t *testing.T) {
	w := serve(newTestRouter(&fakeReports{}, fakePinger{}), http.MethodGet, "/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"store-uptime-backend/internal/model"
	"store-uptime-backend/internal/report"
	"store-uptime-backend/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TriggerReport handles POST /trigger_report.
func (h *Handler) TriggerReport(c *gin.Context) {
	id, err := h.reports.Create(c.Request.Context())
	if errors.Is(err, report.ErrQueueFull) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Report queue is full"})
		return
	}
	if err != nil {
		h.log.Error("failed to trigger report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to trigger report"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report_id": id})
}

// GetReport handles GET /get_report. It answers with the job status while
// it runs and with the report file once complete.
func (h *Handler) GetReport(c *gin.Context) {
	id := strings.TrimSpace(c.Query("report_id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report_id is required"})
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	if format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}

	ctx := c.Request.Context()
	job, err := h.reports.GetStatus(ctx, id)
	if errors.Is(err, store.ErrReportNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	if err != nil {
		h.log.Error("failed to fetch report status", zap.String("report_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch report"})
		return
	}

	switch job.Status {
	case model.ReportRunning:
		c.JSON(http.StatusOK, gin.H{"status": string(model.ReportRunning)})
		return
	case model.ReportComplete:
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Report generation failed"})
		return
	}

	data, err := h.reports.Artifact(ctx, job)
	if err != nil {
		h.log.Error("failed to read report artifact", zap.String("report_id", id), zap.String("location", job.ResultLocation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Report generation failed"})
		return
	}

	filename := report.ArtifactName(id)
	contentType := "text/csv"
	if format == "xlsx" {
		data, err = report.RenderXLSX(data)
		if err != nil {
			h.log.Error("failed to render xlsx report", zap.String("report_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Report generation failed"})
			return
		}
		filename = strings.TrimSuffix(filename, ".csv") + ".xlsx"
		contentType = xlsxContentType
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		c.String(http.StatusServiceUnavailable, "unavailable")
		return
	}
	c.String(http.StatusOK, "ok")
}

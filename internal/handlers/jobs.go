package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/taskwell/workpool/api/v1"
	"github.com/taskwell/workpool/internal/services"
	srvErrors "github.com/taskwell/workpool/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GetStatus returns the live pool snapshot
// (GET /status)
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, v1.NewStatusResponse(h.runner.Status(), h.runner.Workloads()))
}

// ListJobs returns the persisted run history with filtering and pagination
// (GET /jobs)
func (h *Handler) ListJobs(c *gin.Context) {
	page := 1
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	pageSize := defaultPageSize
	if v, err := strconv.Atoi(c.Query("pageSize")); err == nil && v > 0 {
		pageSize = v
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
	}

	params := services.HistoryListParams{
		Limit:  uint64(pageSize),
		Offset: uint64((page - 1) * pageSize),
	}
	if statuses := c.Query("status"); statuses != "" {
		params.Statuses = strings.Split(statuses, ",")
	}
	if workloads := c.Query("workload"); workloads != "" {
		params.Workloads = strings.Split(workloads, ",")
	}

	result, err := h.history.List(c.Request.Context(), params)
	if err != nil {
		zap.S().Named("job_handler").Errorw("failed to list job runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list job runs"})
		return
	}

	pageCount := (result.Total + pageSize - 1) / pageSize
	if pageCount == 0 {
		pageCount = 1
	}

	apiRuns := make([]v1.JobRun, 0, len(result.Runs))
	for _, run := range result.Runs {
		apiRuns = append(apiRuns, v1.NewJobRunFromModel(run))
	}

	c.JSON(http.StatusOK, v1.JobListResponse{
		Page:      page,
		PageCount: pageCount,
		Total:     result.Total,
		Jobs:      apiRuns,
	})
}

// SubmitJob submits one registered workload
// (POST /jobs)
func (h *Handler) SubmitJob(c *gin.Context) {
	var req v1.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := h.runner.SubmitWorkload(c.Request.Context(), req.Workload, req.Params)
	if err != nil {
		switch {
		case srvErrors.IsWorkloadNotFoundError(err):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case srvErrors.IsPoolSaturatedError(err):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		case srvErrors.IsPoolClosedError(err):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			zap.S().Named("job_handler").Errorw("failed to submit workload", "workload", req.Workload, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit workload"})
		}
		return
	}

	c.JSON(http.StatusAccepted, v1.SubmitResponse{ID: uint64(id)})
}

// CancelJob requests cancellation of one job
// (POST /jobs/{id}/cancel)
func (h *Handler) CancelJob(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	h.runner.Cancel(id)
	c.Status(http.StatusAccepted)
}

// CancelAllJobs requests cancellation of every non-terminal job
// (POST /jobs/cancel)
func (h *Handler) CancelAllJobs(c *gin.Context) {
	h.runner.CancelAll()
	c.Status(http.StatusAccepted)
}

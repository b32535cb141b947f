package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/fbr-submission/internal/application/service"
	"github.com/garyjia/fbr-submission/internal/application/submission"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/internal/domain/workflow"
	"github.com/garyjia/fbr-submission/internal/infrastructure/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	submissions service.SubmissionService
	health      HealthFunc
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(submissions service.SubmissionService, health HealthFunc, logger Logger) *Handlers {
	return &Handlers{
		submissions: submissions,
		health:      health,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// ResultsResponse carries ordered results with their counts
type ResultsResponse struct {
	Results []*entity.ProcessResult `json:"results"`
	Summary submission.Summary      `json:"summary"`
}

// StopResponse lists the invoices marked as stopped
type StopResponse struct {
	Stopped []*entity.ProcessResult `json:"stopped"`
	Run     *service.RunView        `json:"run"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.health != nil {
		healthy, detail := h.health()
		resp.Components = detail
		if !healthy {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// StartRun handles POST /api/submissions
func (h *Handlers) StartRun(c *gin.Context) {
	var req service.StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request: " + err.Error()})
		return
	}

	run, err := h.submissions.StartRun(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "Failed to start run", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: run})
}

// GetRun handles GET /api/submissions/:id
func (h *Handlers) GetRun(c *gin.Context) {
	run, err := h.submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get run", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}

// Begin handles POST /api/submissions/:id/begin
func (h *Handlers) Begin(c *gin.Context) {
	run, err := h.submissions.Begin(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to begin run", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}

// Current handles GET /api/submissions/:id/current
func (h *Handlers) Current(c *gin.Context) {
	step, err := h.submissions.Current(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get current invoice", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: step})
}

// Confirm handles POST /api/submissions/:id/confirm.
// A gateway failure is a recorded result, so it is still a 200.
func (h *Handlers) Confirm(c *gin.Context) {
	result, err := h.submissions.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to confirm invoice", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// Skip handles POST /api/submissions/:id/skip
func (h *Handlers) Skip(c *gin.Context) {
	result, err := h.submissions.Skip(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to skip invoice", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// Stop handles POST /api/submissions/:id/stop
func (h *Handlers) Stop(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	stopped, err := h.submissions.Stop(ctx, id)
	if err != nil {
		h.fail(c, "Failed to stop run", err)
		return
	}

	run, err := h.submissions.Get(ctx, id)
	if err != nil {
		h.fail(c, "Failed to get run", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: StopResponse{Stopped: stopped, Run: run}})
}

// Results handles GET /api/submissions/:id/results
func (h *Handlers) Results(c *gin.Context) {
	results, summary, err := h.submissions.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get results", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ResultsResponse{Results: results, Summary: summary}})
}

// ExportResults handles GET /api/submissions/:id/results/export
func (h *Handlers) ExportResults(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	run, err := h.submissions.Get(ctx, id)
	if err != nil {
		h.fail(c, "Failed to get run", err)
		return
	}
	results, summary, err := h.submissions.Results(ctx, id)
	if err != nil {
		h.fail(c, "Failed to get results", err)
		return
	}

	buf, err := export.ResultsWorkbook(export.RunHeader{
		RunID:     run.ID,
		CompanyID: run.CompanyID,
		Mode:      run.Mode,
		State:     run.State.String(),
		Total:     summary.Total,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
		Stopped:   summary.Stopped,
	}, results)
	if err != nil {
		h.fail(c, "Failed to build workbook", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="fbr-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// PreviewPayload handles GET /api/submissions/:id/invoices/:invoiceId/payload
func (h *Handlers) PreviewPayload(c *gin.Context) {
	invoiceID, err := strconv.ParseInt(c.Param("invoiceId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid invoice ID"})
		return
	}

	payload, err := h.submissions.Preview(c.Request.Context(), c.Param("id"), invoiceID)

	var incomplete *entity.IncompletePayloadError
	if errors.As(err, &incomplete) {
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Data: payload, Error: incomplete.Error()})
		return
	}
	if err != nil {
		h.fail(c, "Failed to preview payload", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: payload})
}

// fail maps service errors to status codes; unknown errors are logged as 500s
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorw(msg, "path", c.FullPath(), "run_id", c.Param("id"), "error", err)
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrRunNotFound),
		errors.Is(err, submission.ErrInvoiceNotFound),
		errors.Is(err, submission.ErrInvoiceNotLoaded):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, submission.ErrNoCurrentInvoice),
		errors.Is(err, service.ErrInvoiceInActiveRun):
		return http.StatusConflict
	case errors.Is(err, submission.ErrInvalidMode),
		errors.Is(err, submission.ErrEmptySelection):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

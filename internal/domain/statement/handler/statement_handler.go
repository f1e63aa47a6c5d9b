// Package handler exposes the statement import pipeline over HTTP.
package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/common"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/repository"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/service"
	"github.com/nishant-gupta/smartkosh-sub000/pkg/middleware"
	"github.com/nishant-gupta/smartkosh-sub000/pkg/response"
)

// StatementHandler serves upload, job status and notification endpoints.
type StatementHandler struct {
	intake         service.IntakeService
	repo           repository.StatementRepository
	notifications  repository.NotificationStore
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewStatementHandler creates the handler.
func NewStatementHandler(
	intake service.IntakeService,
	repo repository.StatementRepository,
	notifications repository.NotificationStore,
	maxUploadBytes int64,
	logger *slog.Logger,
) *StatementHandler {
	return &StatementHandler{
		intake:         intake,
		repo:           repo,
		notifications:  notifications,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// uploadResponse is the acceptance payload: the upload was received, the work
// happens in the background.
type uploadResponse struct {
	Success bool      `json:"success"`
	JobID   uuid.UUID `json:"jobId"`
	Message string    `json:"message"`
}

// Upload accepts a multipart CSV statement and schedules an import job.
// It responds 202 before any row is parsed beyond the leading sample.
func (h *StatementHandler) Upload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "statement file is required", "send the CSV as multipart field \"file\"")
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		response.BadRequest(c, "statement file too large",
			"maximum upload size is "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes")
		return
	}
	if !isCSV(fileHeader.Filename, fileHeader.Header.Get("Content-Type")) {
		response.BadRequest(c, "unsupported file type", "only CSV statements are supported")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "failed to read statement file", err.Error())
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			h.logger.Warn("failed to close uploaded file", "error", err)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(c, "failed to read statement file", err.Error())
		return
	}

	job, err := h.intake.Accept(c.Request.Context(), userID, fileHeader.Filename, content)
	if err != nil {
		h.writeIntakeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, uploadResponse{
		Success: true,
		JobID:   job.ID,
		Message: "Statement received. Transactions will appear once processing completes.",
	})
}

// GetJobs returns one job when the id query parameter is set, otherwise the
// user's jobs newest-first. Progress and result come straight from the job row.
func (h *StatementHandler) GetJobs(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	if idParam := c.Query("id"); idParam != "" {
		jobID, err := uuid.Parse(idParam)
		if err != nil {
			response.BadRequest(c, "invalid job id", "id must be a UUID")
			return
		}
		job, err := h.repo.GetImportJob(c.Request.Context(), userID, jobID)
		if errors.Is(err, common.ErrNotFound) {
			response.NotFound(c, "import job not found")
			return
		}
		if err != nil {
			h.logger.Error("failed to get import job", "job_id", jobID, "error", err)
			response.InternalError(c, "failed to get import job", "")
			return
		}
		response.Success(c, http.StatusOK, "Import job retrieved", job)
		return
	}

	jobs, err := h.repo.ListImportJobs(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list import jobs", "user_id", userID, "error", err)
		response.InternalError(c, "failed to list import jobs", "")
		return
	}
	if jobs == nil {
		jobs = []*repository.ImportJob{}
	}
	response.Success(c, http.StatusOK, "Import jobs retrieved", jobs)
}

// GetNotifications returns the user's notifications newest-first.
func (h *StatementHandler) GetNotifications(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	limit := 50
	if limitParam := c.Query("limit"); limitParam != "" {
		n, err := strconv.Atoi(limitParam)
		if err != nil || n <= 0 || n > 200 {
			response.BadRequest(c, "invalid limit", "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	notifications, err := h.notifications.ListNotifications(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list notifications", "user_id", userID, "error", err)
		response.InternalError(c, "failed to list notifications", "")
		return
	}
	if notifications == nil {
		notifications = []*repository.Notification{}
	}
	response.Success(c, http.StatusOK, "Notifications retrieved", notifications)
}

func (h *StatementHandler) writeIntakeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNoAccount):
		response.BadRequest(c, common.ErrNoAccount.Error(), "")
	case errors.Is(err, common.ErrInvalidFile):
		response.BadRequest(c, "invalid statement file", err.Error())
	default:
		h.logger.Error("statement upload failed", "error", err)
		response.InternalError(c, "failed to accept statement upload", "")
	}
}

func isCSV(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "text/csv", "application/csv", "application/vnd.ms-excel":
		return true
	}
	return false
}

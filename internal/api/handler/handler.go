package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cuongbtq/booking-be/internal/api/dto"
	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/cuongbtq/booking-be/internal/booking/lifecycle"
	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key the acting user's id is stored under
const UserIDKey = "user_id"

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger *slog.Logger
	Engine *lifecycle.Engine
	// HealthCheck reports backing store health; nil means always healthy
	HealthCheck func(ctx context.Context) error
}

// JobHandler exposes the booking lifecycle over HTTP
type JobHandler struct {
	logger *slog.Logger
	engine *lifecycle.Engine
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		engine: deps.Engine,
	}
}

// actorID returns the user id set by the authentication middleware
func actorID(c *gin.Context) int64 {
	return c.GetInt64(UserIDKey)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": name + " must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

// statusFor maps lifecycle errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTooLateToCancel):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *JobHandler) writeError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		c.JSON(status, gin.H{"error": "Failed to " + op})
		return
	}

	body := gin.H{"error": err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	c.JSON(status, body)
}

// writeResult answers with the business result. A result that comes with an
// error uses the error's status code but keeps the result body.
func (h *JobHandler) writeResult(c *gin.Context, op string, result domain.Result, err error) {
	if err != nil && result.Status == "" {
		h.writeError(c, op, err)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	c.JSON(status, dto.NewResultResponse(result))
}

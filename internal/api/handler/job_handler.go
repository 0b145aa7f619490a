package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/booking-be/internal/api/dto"
	"github.com/cuongbtq/booking-be/internal/booking/domain"
	"github.com/gin-gonic/gin"
)

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.engine.CreateJob(c.Request.Context(), actorID(c), req.Command())
	if err != nil {
		h.writeError(c, "create job", err)
		return
	}

	h.logger.Info("Job created",
		slog.Int64("job_id", job.ID),
		slog.Int64("customer_id", job.CustomerID),
		slog.Bool("immediate", job.Immediate),
	)
	c.JSON(http.StatusCreated, dto.NewJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}

	job, err := h.engine.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.writeError(c, "get job", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// StoreJobEmail handles POST /api/v1/jobs/:job_id/email
// Sets the contact details of a new job and sends the confirmation email.
func (h *JobHandler) StoreJobEmail(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}

	var req dto.StoreJobEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	cmd := domain.StoreJobEmailCommand{
		JobID:        jobID,
		UserEmail:    req.UserEmail,
		Reference:    req.Reference,
		Instructions: req.Instructions,
		Town:         req.Town,
	}
	if req.Address != nil {
		cmd.HasAddress = true
		cmd.Address = *req.Address
	}

	job, err := h.engine.StoreJobEmail(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, "store job email", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// AcceptJob handles POST /api/v1/jobs/:job_id/accept
func (h *JobHandler) AcceptJob(c *gin.Context) {
	h.accept(c, false)
}

// AcceptJobWithID handles POST /api/v1/jobs/:job_id/accept-with-id
func (h *JobHandler) AcceptJobWithID(c *gin.Context) {
	h.accept(c, true)
}

func (h *JobHandler) accept(c *gin.Context, withID bool) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}

	accept := h.engine.AcceptJob
	if withID {
		accept = h.engine.AcceptJobWithID
	}
	result, err := accept(c.Request.Context(), jobID, actorID(c))
	if err != nil && result.Status == "" {
		h.writeError(c, "accept job", err)
		return
	}

	resp := dto.AcceptResponse{
		ResultResponse: dto.NewResultResponse(result.Result),
		PotentialJobs:  dto.NewJobDTOs(result.PotentialJobs),
	}
	if result.Job != nil {
		j := dto.NewJobDTO(result.Job)
		resp.Job = &j
	}

	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	c.JSON(status, resp)
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}

	result, err := h.engine.CancelJob(c.Request.Context(), jobID, actorID(c))
	h.writeResult(c, "cancel job", result, err)
}

// EndJob handles POST /api/v1/jobs/:job_id/end
func (h *JobHandler) EndJob(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}

	result, err := h.engine.EndJob(c.Request.Context(), jobID, actorID(c))
	h.writeResult(c, "end job", result, err)
}

// UpdateJob handles PUT /api/v1/jobs/:job_id
func (h *JobHandler) UpdateJob(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}

	var req dto.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	cmd := domain.UpdateJobCommand{
		TranslatorID:    req.TranslatorID,
		TranslatorEmail: req.TranslatorEmail,
		Due:             req.Due,
		FromLanguageID:  req.FromLanguageID,
		Status:          domain.JobStatus(req.Status),
		AdminComments:   req.AdminComments,
		Reference:       req.Reference,
	}
	result, err := h.engine.UpdateJob(c.Request.Context(), jobID, cmd, actorID(c))
	h.writeResult(c, "update job", result, err)
}

// IgnoreExpiring handles POST /api/v1/jobs/:job_id/ignore-expiring
func (h *JobHandler) IgnoreExpiring(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}
	result, err := h.engine.IgnoreExpiring(c.Request.Context(), jobID)
	h.writeResult(c, "ignore expiring job", result, err)
}

// IgnoreExpired handles POST /api/v1/jobs/:job_id/ignore-expired
func (h *JobHandler) IgnoreExpired(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}
	result, err := h.engine.IgnoreExpired(c.Request.Context(), jobID)
	h.writeResult(c, "ignore expired job", result, err)
}

// UpdateDistanceFeed handles POST /api/v1/jobs/:job_id/distance-feed
func (h *JobHandler) UpdateDistanceFeed(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}

	var req dto.DistanceFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	result, err := h.engine.UpdateDistanceFeed(c.Request.Context(), domain.DistanceFeedCommand{
		JobID:           jobID,
		Distance:        req.Distance,
		Time:            req.Time,
		SessionTime:     req.SessionTime,
		AdminComment:    req.AdminComment,
		Flagged:         req.Flagged,
		ManuallyHandled: req.ManuallyHandled,
		ByAdmin:         req.ByAdmin,
	})
	h.writeResult(c, "update distance feed", result, err)
}

// ResendNotifications handles POST /api/v1/jobs/:job_id/resend-push
func (h *JobHandler) ResendNotifications(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}

	outcome, err := h.engine.ResendNotifications(c.Request.Context(), jobID)
	if err != nil {
		h.writeError(c, "resend notifications", err)
		return
	}
	if outcome.Failed() {
		c.JSON(http.StatusBadGateway, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// ResendSMSNotifications handles POST /api/v1/jobs/:job_id/resend-sms
func (h *JobHandler) ResendSMSNotifications(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}

	outcome, err := h.engine.ResendSMSNotifications(c.Request.Context(), jobID)
	if err != nil {
		h.writeError(c, "resend sms notifications", err)
		return
	}
	if outcome.Failed() {
		c.JSON(http.StatusBadGateway, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// GetUsersJobs handles GET /api/v1/users/:user_id/jobs
func (h *JobHandler) GetUsersJobs(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	jobs, err := h.engine.GetUsersJobs(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, "get users jobs", err)
		return
	}

	c.JSON(http.StatusOK, dto.UsersJobsResponse{
		UserType:      string(jobs.UserType),
		EmergencyJobs: dto.NewJobDTOs(jobs.EmergencyJobs),
		NormalJobs:    dto.NewJobDTOs(jobs.NormalJobs),
	})
}

// GetUsersJobsHistory handles GET /api/v1/users/:user_id/jobs/history
// Pages with an opaque keyset cursor
func (h *JobHandler) GetUsersJobsHistory(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	var req dto.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}
	cursor, err := DecodeHistoryCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid history cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	history, err := h.engine.GetUsersJobsHistory(c.Request.Context(), userID, cursor)
	if err != nil {
		h.writeError(c, "get users jobs history", err)
		return
	}

	c.JSON(http.StatusOK, dto.HistoryResponse{
		UserType:   string(history.UserType),
		Jobs:       dto.NewJobDTOs(history.Jobs),
		NextCursor: EncodeHistoryCursor(history.NextCursor),
	})
}

// GetPotentialJobs handles GET /api/v1/users/:user_id/potential-jobs
func (h *JobHandler) GetPotentialJobs(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	jobs, err := h.engine.GetPotentialJobs(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, "get potential jobs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": dto.NewJobDTOs(jobs)})
}

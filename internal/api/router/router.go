package router

import (
	"net/http"

	"github.com/cuongbtq/booking-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "booking-api-service",
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "booking-api-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	v1.Use(RequireUser(deps.Logger))
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.PUT("/:job_id", jobHandler.UpdateJob)
			jobs.POST("/:job_id/email", jobHandler.StoreJobEmail)
			jobs.POST("/:job_id/accept", jobHandler.AcceptJob)
			jobs.POST("/:job_id/accept-with-id", jobHandler.AcceptJobWithID)
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
			jobs.POST("/:job_id/end", jobHandler.EndJob)
			jobs.POST("/:job_id/ignore-expiring", jobHandler.IgnoreExpiring)
			jobs.POST("/:job_id/ignore-expired", jobHandler.IgnoreExpired)
			jobs.POST("/:job_id/distance-feed", jobHandler.UpdateDistanceFeed)
			jobs.POST("/:job_id/resend-push", jobHandler.ResendNotifications)
			jobs.POST("/:job_id/resend-sms", jobHandler.ResendSMSNotifications)
		}

		users := v1.Group("/users/:user_id")
		{
			users.GET("/jobs", jobHandler.GetUsersJobs)
			users.GET("/jobs/history", jobHandler.GetUsersJobsHistory)
			users.GET("/potential-jobs", jobHandler.GetPotentialJobs)
		}
	}

	return r
}

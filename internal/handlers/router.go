package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/config"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/services"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/utils"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
)

type HandlerManager struct {
	attemptHandler   *AttemptHandler
	structureHandler *StructureHandler
	regradeHandler   *RegradeHandler
	overrideHandler  *OverrideHandler
	reportHandler    *ReportHandler
	authMiddleware   *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		attemptHandler:   NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		structureHandler: NewStructureHandler(serviceManager.Structure(), validator, logger),
		regradeHandler:   NewRegradeHandler(serviceManager.Regrade(), validator, logger),
		overrideHandler:  NewOverrideHandler(serviceManager.Override(), validator, logger),
		reportHandler:    NewReportHandler(serviceManager.Report(), logger),
		authMiddleware:   authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	teacherOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Quiz-scoped routes
		quizzes := v1.Group("/quizzes/:quiz_id")
		{
			// Attempt lifecycle - all authenticated users
			quizzes.POST("/attempts", hm.attemptHandler.StartAttempt)
			quizzes.GET("/attempts", hm.attemptHandler.ListAttempts)
			quizzes.GET("/access", hm.attemptHandler.GetAccessInfo)
			quizzes.POST("/preflight", hm.attemptHandler.CheckPreflight)

			// Structure editing - Teachers and Admins only
			quizzes.GET("/structure", teacherOnly, hm.structureHandler.GetStructure)
			quizzes.PUT("/slots/:slot/move", teacherOnly, hm.structureHandler.MoveSlot)
			quizzes.DELETE("/slots/:slot", teacherOnly, hm.structureHandler.RemoveSlot)
			quizzes.PUT("/slots/:slot/maxmark", teacherOnly, hm.structureHandler.UpdateSlotMaxMark)
			quizzes.PUT("/slots/:slot/require-previous", teacherOnly, hm.structureHandler.SetRequirePrevious)
			quizzes.POST("/sections", teacherOnly, hm.structureHandler.AddSectionHeading)
			quizzes.PUT("/sections/:id", teacherOnly, hm.structureHandler.UpdateSection)
			quizzes.DELETE("/sections/:id", teacherOnly, hm.structureHandler.RemoveSectionHeading)

			// Regrading - Teachers and Admins only
			quizzes.POST("/regrades", teacherOnly, hm.regradeHandler.Regrade)
			quizzes.POST("/regrades/resume", teacherOnly, hm.regradeHandler.RegradeNeeded)
			quizzes.GET("/regrades/summary", teacherOnly, hm.regradeHandler.GetSummary)

			// Reporting - Teachers and Admins only
			quizzes.GET("/report.xlsx", teacherOnly, hm.reportHandler.ExportAttemptsOverview)

			// Overrides - Teachers and Admins only
			overrides := quizzes.Group("/overrides", teacherOnly)
			{
				overrides.POST("", hm.overrideHandler.CreateOverride)
				overrides.GET("", hm.overrideHandler.ListOverrides)
				overrides.GET("/:id", hm.overrideHandler.GetOverride)
				overrides.PUT("/:id", hm.overrideHandler.UpdateOverride)
				overrides.DELETE("/:id", hm.overrideHandler.DeleteOverride)
			}
		}

		// Attempt-scoped routes
		attempts := v1.Group("/attempts")
		{
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/:id/timer", hm.attemptHandler.GetTimer)
			attempts.PUT("/:id/page", hm.attemptHandler.Navigate)
			attempts.POST("/:id/save", hm.attemptHandler.SaveAttempt)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.POST("/:id/abandon", hm.attemptHandler.AbandonAttempt)

			// Expiry sweep - Teachers and Admins only (workers authenticate as service accounts)
			attempts.POST("/process-expired", teacherOnly, hm.attemptHandler.ProcessExpiredAttempts)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "quiz-attempt-service",
		})
	})
}

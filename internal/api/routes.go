package api

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/events"
	"alcyxob/fitness-coach/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services bundles everything the HTTP layer calls.
type Services struct {
	Auth        service.AuthService
	Exercises   service.ExerciseService
	Plans       service.PlanService
	Routines    service.RoutineService
	Activation  service.ActivationService
	Execution   service.ExecutionService
	Diaries     service.DiaryService
	Attachments service.AttachmentService
	Broker      *events.Broker
}

// NewRouter builds a gin engine with zap request logging and recovery.
func NewRouter(svc Services, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(log.Named("http")), Recovery(log))
	SetupRoutes(router, svc, log)
	return router
}

func SetupRoutes(router *gin.Engine, svc Services, log *zap.Logger) {
	authHandler := NewAuthHandler(svc.Auth, log)
	exerciseHandler := NewExerciseHandler(svc.Exercises, log)
	planHandler := NewPlanHandler(svc.Plans, log)
	routineHandler := NewRoutineHandler(svc.Routines, svc.Activation, svc.Execution, log)
	diaryHandler := NewDiaryHandler(svc.Diaries, svc.Execution, svc.Attachments, log)
	eventsHandler := NewEventsHandler(svc.Broker, svc.Auth, log)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(svc.Auth))
	{
		protected.GET("/me", authHandler.Me)
		protected.POST("/trainer/clients", RoleMiddleware(domain.RoleTrainer), authHandler.LinkClient)

		exerciseGroup := protected.Group("/exercises")
		{
			exerciseGroup.GET("", exerciseHandler.ListExercises)
			exerciseGroup.GET("/search", exerciseHandler.SearchExercises)
			exerciseGroup.POST("", RoleMiddleware(domain.RoleTrainer), exerciseHandler.CreateExercise)
		}

		// --- Plan Registry ---
		planGroup := protected.Group("/training-plans")
		{
			planGroup.POST("", RoleMiddleware(domain.RoleTrainer), planHandler.CreateTrainingPlan)
			planGroup.GET("/active/:clientDni", planHandler.GetActivePlan)
			planGroup.GET("/active/:clientDni/routines", planHandler.GetClientActiveRoutines)
			planGroup.GET("/history/:clientDni", planHandler.GetPlanHistory)
			planGroup.GET("/:planId/active-routines", planHandler.GetActiveRoutines)
			planGroup.GET("/:planId/routines", planHandler.GetRoutines)
		}

		// --- Routine Catalog, activation and completion ---
		routineGroup := protected.Group("/routines")
		{
			routineGroup.POST("", RoleMiddleware(domain.RoleTrainer), routineHandler.CreateRoutine)
			routineGroup.GET("/:routineId", routineHandler.GetRoutine)
			routineGroup.POST("/:routineId/sessions", RoleMiddleware(domain.RoleTrainer), routineHandler.AddSession)
			routineGroup.PUT("/:routineId/sessions", RoleMiddleware(domain.RoleTrainer), routineHandler.UpsertSession)
			routineGroup.PATCH("/:routineId/sessions/:sessionId", RoleMiddleware(domain.RoleTrainer), routineHandler.PatchSession)
			routineGroup.DELETE("/:routineId/sessions/:sessionId", RoleMiddleware(domain.RoleTrainer), routineHandler.RemoveSession)
			routineGroup.POST("/activate/:clientDni/:routineId", routineHandler.ActivateRoutine)
			routineGroup.POST("/deactivate/:routineId", RoleMiddleware(domain.RoleTrainer), routineHandler.DeactivateRoutine)
			routineGroup.PUT("/:routineId/complete", RoleMiddleware(domain.RoleClient), routineHandler.CompleteRoutine)
		}

		// --- Diary Store ---
		diaryGroup := protected.Group("/training-diaries")
		{
			diaryGroup.POST("", RoleMiddleware(domain.RoleClient), diaryHandler.CreateDiary)
			diaryGroup.GET("/client/:clientDni", diaryHandler.ListClientDiaries)
			diaryGroup.GET("/plan/:clientDni", diaryHandler.ListPlanDiaries)
			diaryGroup.DELETE("/sessions/:sessionEntryId", RoleMiddleware(domain.RoleClient), diaryHandler.DeleteSessionEntry)
			diaryGroup.GET("/:diaryId", diaryHandler.GetDiary)
			diaryGroup.PUT("/:diaryId", RoleMiddleware(domain.RoleClient), diaryHandler.UpdateDiary)
			diaryGroup.POST("/:diaryId/sessions", RoleMiddleware(domain.RoleClient), diaryHandler.RecordSession)
			diaryGroup.POST("/:diaryId/attachments/upload-url", RoleMiddleware(domain.RoleClient), diaryHandler.RequestAttachmentUpload)
			diaryGroup.POST("/:diaryId/attachments", RoleMiddleware(domain.RoleClient), diaryHandler.ConfirmAttachment)
			diaryGroup.GET("/:diaryId/attachments/:attachmentId/download-url", diaryHandler.AttachmentDownloadURL)
		}

		protected.GET("/events/:clientDni", eventsHandler.Stream)
	}
}

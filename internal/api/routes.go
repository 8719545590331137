package api

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services builds request-scoped services. Every service acts through an
// identity client, and over HTTP each request carries its own.
type Services struct {
	Deps      service.Deps
	Directory *identity.Directory
}

// client returns the caller's identity client, or a fresh signed-out one on
// public routes.
func (s *Services) client(c *gin.Context) *identity.Client {
	if client, err := getClientFromContext(c); err == nil {
		return client
	}
	return s.Directory.NewClient()
}

func (s *Services) auth(client *identity.Client) service.AuthService {
	return service.NewAuthService(s.Deps, client, nil)
}

func (s *Services) roster() service.RosterService {
	return service.NewRosterService(s.Deps)
}

func (s *Services) workouts(c *gin.Context) service.WorkoutService {
	return service.NewWorkoutService(s.Deps, s.client(c))
}

func (s *Services) exercises(c *gin.Context) service.ExerciseService {
	return service.NewExerciseService(s.Deps, s.client(c))
}

func (s *Services) feedbacks(c *gin.Context) service.FeedbackService {
	return service.NewFeedbackService(s.Deps, s.client(c))
}

// registerValidators adds the custom binding tags used by request DTOs.
func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
			return domain.DayOfWeek(fl.Field().String()).Valid()
		})
	}
}

func SetupRoutes(router *gin.Engine, services *Services, gatherer prometheus.Gatherer) {
	registerValidators()

	authHandler := NewAuthHandler(services)
	trainerHandler := NewTrainerHandler(services)
	studentHandler := NewStudentHandler(services)
	exerciseHandler := NewExerciseHandler(services)

	authMiddleware := AuthMiddleware(services.Directory)
	trainerOnly := RoleMiddleware(services.roster(), domain.UserTypeTrainer)
	studentOnly := RoleMiddleware(services.roster(), domain.UserTypeStudent)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.Signup)
			authGroup.POST("/login", authHandler.Login)
		}
		// Public so the signup form can confirm a code before submitting.
		apiV1.GET("/referral-codes/:code", authHandler.ResolveReferralCode)
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/me", authHandler.Me)

		// Visible to the owning trainer and the assigned student; the
		// services enforce that.
		protected.GET("/workouts/:id", trainerHandler.GetWorkout)
		protected.GET("/exercises/:id", exerciseHandler.GetExercise)
		protected.GET("/exercises/:id/video-url", exerciseHandler.GetVideoURL)
		protected.GET("/feedbacks/:id", studentHandler.GetFeedback)

		trainerGroup := protected.Group("/trainer")
		trainerGroup.Use(trainerOnly)
		{
			trainerGroup.GET("/students", trainerHandler.ListStudents)
			trainerGroup.GET("/students/:id", trainerHandler.GetStudent)

			trainerGroup.POST("/exercises", exerciseHandler.CreateExercise)
			trainerGroup.GET("/exercises", exerciseHandler.GetTrainerExercises)
			trainerGroup.PATCH("/exercises/:id", exerciseHandler.UpdateExercise)
			trainerGroup.DELETE("/exercises/:id", exerciseHandler.DeleteExercise)
			trainerGroup.POST("/exercises/:id/video-upload", exerciseHandler.RequestVideoUpload)

			trainerGroup.POST("/workouts", trainerHandler.CreateWorkout)
			trainerGroup.GET("/workouts", trainerHandler.ListWorkouts)
			trainerGroup.PATCH("/workouts/:id", trainerHandler.UpdateWorkout)
			trainerGroup.DELETE("/workouts/:id", trainerHandler.DeleteWorkout)

			trainerGroup.GET("/feedbacks", trainerHandler.ListFeedbacks)
		}

		studentGroup := protected.Group("/student")
		studentGroup.Use(studentOnly)
		{
			studentGroup.GET("/workouts", studentHandler.ListWorkouts)
			studentGroup.GET("/workouts/:id/feedback-status", studentHandler.FeedbackStatus)
			studentGroup.POST("/feedbacks", studentHandler.SubmitFeedback)
			studentGroup.GET("/feedbacks", studentHandler.ListFeedbacks)
		}
	}
}

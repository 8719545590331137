// internal/api/trainer_handler.go
package api

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/service"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type TrainerHandler struct {
	services *Services
}

func NewTrainerHandler(services *Services) *TrainerHandler {
	return &TrainerHandler{services: services}
}

// --- DTOs for Workout Management ---

type CreateWorkoutRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Days        domain.WorkoutDays `json:"days"`
	StudentID   string             `json:"studentId"`
}

// UpdateWorkoutRequest changes only the fields present in the body. Days,
// when present, replaces the whole plan.
type UpdateWorkoutRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Days        domain.WorkoutDays `json:"days"`
}

type WorkoutResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	PersonalID  string             `json:"personalId"`
	StudentID   *string            `json:"studentId"`
	Days        domain.WorkoutDays `json:"days"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt,omitempty"`
}

func MapWorkoutToResponse(w *domain.Workout) WorkoutResponse {
	if w == nil {
		return WorkoutResponse{}
	}
	days := w.Days
	if days == nil {
		days = domain.WorkoutDays{}
	}
	return WorkoutResponse{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		PersonalID:  w.PersonalID,
		StudentID:   w.StudentID,
		Days:        days,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func MapWorkoutsToResponse(workouts []domain.Workout) []WorkoutResponse {
	responses := make([]WorkoutResponse, len(workouts))
	for i := range workouts {
		responses[i] = MapWorkoutToResponse(&workouts[i])
	}
	return responses
}

// --- Roster ---

// ListStudents returns the students linked to the trainer. The roster is
// derived from the student profiles and the cached list is rewritten to
// match.
func (h *TrainerHandler) ListStudents(c *gin.Context) {
	trainer, ok := getProfileFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Trainer profile not found in context")
		return
	}

	students, err := h.services.roster().ListMyStudents(c.Request.Context(), trainer.UID)
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to retrieve students.")
		return
	}
	c.JSON(http.StatusOK, MapUsersToResponse(students))
}

func (h *TrainerHandler) GetStudent(c *gin.Context) {
	trainerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify trainer from token.")
		return
	}

	student, err := h.services.roster().GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to retrieve student.")
		return
	}
	if !student.IsStudent() || student.PersonalID != trainerID {
		abortWithError(c, http.StatusForbidden, "This student is not linked to you.")
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(student))
}

// --- Workouts ---

func (h *TrainerHandler) CreateWorkout(c *gin.Context) {
	var req CreateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	trainerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify trainer from token.")
		return
	}

	if req.StudentID != "" {
		student, err := h.services.roster().GetProfile(c.Request.Context(), req.StudentID)
		if err != nil && !errors.Is(err, service.ErrProfileNotFound) {
			h.services.abortWithServiceError(c, err, "Failed to verify student.")
			return
		}
		if err != nil || !student.IsStudent() || student.PersonalID != trainerID {
			h.services.abortWithResult(c, service.Result{Kind: service.KindRelationship, Error: "studentId is not one of your students"})
			return
		}
	}

	svc := h.services.workouts(c)
	res := svc.CreateWorkout(c.Request.Context(), service.CreateWorkoutInput{
		Name:        req.Name,
		Description: req.Description,
		Days:        req.Days,
		StudentID:   req.StudentID,
	})
	if !res.Success {
		h.services.abortWithResult(c, res)
		return
	}

	workout, err := svc.GetWorkout(c.Request.Context(), res.ID)
	if err != nil {
		h.services.abortWithServiceError(c, err, "Workout created but could not be loaded.")
		return
	}
	c.JSON(http.StatusCreated, MapWorkoutToResponse(workout))
}

func (h *TrainerHandler) ListWorkouts(c *gin.Context) {
	workouts, err := h.services.workouts(c).ListTrainerWorkouts(c.Request.Context())
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to retrieve workouts.")
		return
	}
	c.JSON(http.StatusOK, MapWorkoutsToResponse(workouts))
}

// GetWorkout is shared by trainers and students.
func (h *TrainerHandler) GetWorkout(c *gin.Context) {
	workout, err := h.services.workouts(c).GetWorkout(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to retrieve workout.")
		return
	}
	c.JSON(http.StatusOK, MapWorkoutToResponse(workout))
}

func (h *TrainerHandler) UpdateWorkout(c *gin.Context) {
	var req UpdateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	svc := h.services.workouts(c)
	res := svc.UpdateWorkout(c.Request.Context(), c.Param("id"), service.WorkoutPatch{
		Name:        req.Name,
		Description: req.Description,
		Days:        req.Days,
	})
	if !res.Success {
		h.services.abortWithResult(c, res)
		return
	}

	workout, err := svc.GetWorkout(c.Request.Context(), res.ID)
	if err != nil {
		h.services.abortWithServiceError(c, err, "Workout updated but could not be loaded.")
		return
	}
	c.JSON(http.StatusOK, MapWorkoutToResponse(workout))
}

func (h *TrainerHandler) DeleteWorkout(c *gin.Context) {
	res := h.services.workouts(c).DeleteWorkout(c.Request.Context(), c.Param("id"))
	if !res.Success {
		h.services.abortWithResult(c, res)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Feedback ---

func (h *TrainerHandler) ListFeedbacks(c *gin.Context) {
	feedbacks, err := h.services.feedbacks(c).ListTrainerFeedbacks(c.Request.Context())
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to retrieve feedback.")
		return
	}
	c.JSON(http.StatusOK, MapFeedbacksToResponse(feedbacks))
}

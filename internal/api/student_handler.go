package api

import (
	"alcyxob/personal-coach/internal/domain"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StudentHandler serves the student's workouts and feedback.
type StudentHandler struct {
	services *Services
}

func NewStudentHandler(services *Services) *StudentHandler {
	return &StudentHandler{services: services}
}

// --- DTOs for Feedback ---

// SubmitFeedbackRequest carries a feedback submission. The student is always
// the caller; a studentId in the body is ignored.
type SubmitFeedbackRequest struct {
	WorkoutID      string           `json:"workoutId"`
	WeekIdentifier string           `json:"weekIdentifier"`
	DayOfWeek      domain.DayOfWeek `json:"dayOfWeek"`
	EffortLevel    int              `json:"effortLevel"`
	Sensation      domain.Sensation `json:"sensation"`
	HasPain        *bool            `json:"hasPain"`
	PainLocation   string           `json:"painLocation"`
	Comment        string           `json:"comment"`
}

type FeedbackStatusQuery struct {
	Day  string `form:"day" binding:"required,weekday"`
	Week string `form:"week"`
}

type FeedbackResponse struct {
	ID             string           `json:"id"`
	StudentID      string           `json:"studentId"`
	WorkoutID      string           `json:"workoutId"`
	WeekIdentifier string           `json:"weekIdentifier"`
	DayOfWeek      domain.DayOfWeek `json:"dayOfWeek"`
	EffortLevel    int              `json:"effortLevel"`
	Sensation      domain.Sensation `json:"sensation"`
	HasPain        bool             `json:"hasPain"`
	PainLocation   string           `json:"painLocation,omitempty"`
	Comment        string           `json:"comment,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

func MapFeedbackToResponse(f *domain.Feedback) FeedbackResponse {
	if f == nil {
		return FeedbackResponse{}
	}
	return FeedbackResponse{
		ID:             f.ID,
		StudentID:      f.StudentID,
		WorkoutID:      f.WorkoutID,
		WeekIdentifier: f.WeekIdentifier,
		DayOfWeek:      f.DayOfWeek,
		EffortLevel:    f.EffortLevel,
		Sensation:      f.Sensation,
		HasPain:        f.HasPain,
		PainLocation:   f.PainLocation,
		Comment:        f.Comment,
		CreatedAt:      f.CreatedAt,
	}
}

func MapFeedbacksToResponse(feedbacks []domain.Feedback) []FeedbackResponse {
	responses := make([]FeedbackResponse, len(feedbacks))
	for i := range feedbacks {
		responses[i] = MapFeedbackToResponse(&feedbacks[i])
	}
	return responses
}

// --- Handler Methods ---

func (h *StudentHandler) ListWorkouts(c *gin.Context) {
	workouts, err := h.services.workouts(c).ListStudentWorkouts(c.Request.Context())
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to retrieve workouts.")
		return
	}
	c.JSON(http.StatusOK, MapWorkoutsToResponse(workouts))
}

// SubmitFeedback answers 409 when the student already reported on that day
// of that workout this week.
func (h *StudentHandler) SubmitFeedback(c *gin.Context) {
	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	svc := h.services.feedbacks(c)
	res := svc.SubmitFeedback(c.Request.Context(), domain.FeedbackInput{
		WorkoutID:      req.WorkoutID,
		WeekIdentifier: req.WeekIdentifier,
		DayOfWeek:      req.DayOfWeek,
		EffortLevel:    req.EffortLevel,
		Sensation:      req.Sensation,
		HasPain:        req.HasPain,
		PainLocation:   req.PainLocation,
		Comment:        req.Comment,
	})
	if !res.Success {
		h.services.abortWithResult(c, res)
		return
	}

	feedback, err := svc.GetFeedback(c.Request.Context(), res.ID)
	if err != nil {
		h.services.abortWithServiceError(c, err, "Feedback saved but could not be loaded.")
		return
	}
	c.JSON(http.StatusCreated, MapFeedbackToResponse(feedback))
}

func (h *StudentHandler) ListFeedbacks(c *gin.Context) {
	feedbacks, err := h.services.feedbacks(c).ListMyFeedbacks(c.Request.Context())
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to retrieve feedback.")
		return
	}
	c.JSON(http.StatusOK, MapFeedbacksToResponse(feedbacks))
}

// FeedbackStatus reports whether feedback exists for ?day= in ?week=, the
// current week when omitted.
func (h *StudentHandler) FeedbackStatus(c *gin.Context) {
	var q FeedbackStatusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	submitted, err := h.services.feedbacks(c).HasFeedbackForDay(c.Request.Context(), c.Param("id"), domain.DayOfWeek(q.Day), q.Week)
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to check feedback status.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"submitted": submitted})
}

// GetFeedback is shared by the student who wrote it and the trainer owning
// the workout.
func (h *StudentHandler) GetFeedback(c *gin.Context) {
	feedback, err := h.services.feedbacks(c).GetFeedback(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to retrieve feedback.")
		return
	}
	c.JSON(http.StatusOK, MapFeedbackToResponse(feedback))
}

package api

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ExerciseHandler serves the trainer's exercise library.
type ExerciseHandler struct {
	services *Services
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(services *Services) *ExerciseHandler {
	return &ExerciseHandler{services: services}
}

// --- DTOs for API (Data Transfer Objects) ---

// CreateExerciseRequest defines the expected JSON for creating an exercise.
type CreateExerciseRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	VideoURL    string `json:"videoUrl" binding:"omitempty,url"` // YouTube links are rewritten to embeds
}

// UpdateExerciseRequest changes only the fields present in the body.
type UpdateExerciseRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	VideoURL    *string `json:"videoUrl" binding:"omitempty,url"`
}

type VideoUploadRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

type VideoUploadResponse struct {
	UploadURL string    `json:"uploadUrl"`
	ObjectKey string    `json:"objectKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExerciseResponse is the DTO for returning exercise details.
type ExerciseResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	VideoURL    string    `json:"videoUrl,omitempty"`
	HasUpload   bool      `json:"hasUploadedVideo"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// MapExerciseToResponse converts a domain.Exercise to ExerciseResponse DTO.
func MapExerciseToResponse(ex *domain.Exercise) ExerciseResponse {
	if ex == nil {
		return ExerciseResponse{}
	}
	return ExerciseResponse{
		ID:          ex.ID,
		Name:        ex.Name,
		Description: ex.Description,
		VideoURL:    ex.VideoURL,
		HasUpload:   ex.VideoObjectKey != "",
		CreatedBy:   ex.CreatedBy,
		CreatedAt:   ex.CreatedAt,
		UpdatedAt:   ex.UpdatedAt,
	}
}

// MapExercisesToResponse converts a slice of domain.Exercise to a slice of ExerciseResponse DTO.
func MapExercisesToResponse(exercises []domain.Exercise) []ExerciseResponse {
	responses := make([]ExerciseResponse, len(exercises))
	for i := range exercises {
		responses[i] = MapExerciseToResponse(&exercises[i])
	}
	return responses
}

// --- Handler Methods ---

func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	var req CreateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	svc := h.services.exercises(c)
	res := svc.CreateExercise(c.Request.Context(), service.ExerciseInput{
		Name:        req.Name,
		Description: req.Description,
		VideoURL:    req.VideoURL,
	})
	if !res.Success {
		h.services.abortWithResult(c, res)
		return
	}

	exercise, err := svc.GetExercise(c.Request.Context(), res.ID)
	if err != nil {
		h.services.abortWithServiceError(c, err, "Exercise created but could not be loaded.")
		return
	}
	c.JSON(http.StatusCreated, MapExerciseToResponse(exercise))
}

func (h *ExerciseHandler) GetTrainerExercises(c *gin.Context) {
	exercises, err := h.services.exercises(c).ListTrainerExercises(c.Request.Context())
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to retrieve exercises.")
		return
	}
	c.JSON(http.StatusOK, MapExercisesToResponse(exercises))
}

func (h *ExerciseHandler) GetExercise(c *gin.Context) {
	exercise, err := h.services.exercises(c).GetExercise(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to retrieve exercise.")
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

func (h *ExerciseHandler) UpdateExercise(c *gin.Context) {
	var req UpdateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	svc := h.services.exercises(c)
	res := svc.UpdateExercise(c.Request.Context(), c.Param("id"), service.ExercisePatch{
		Name:        req.Name,
		Description: req.Description,
		VideoURL:    req.VideoURL,
	})
	if !res.Success {
		h.services.abortWithResult(c, res)
		return
	}

	exercise, err := svc.GetExercise(c.Request.Context(), res.ID)
	if err != nil {
		h.services.abortWithServiceError(c, err, "Exercise updated but could not be loaded.")
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

func (h *ExerciseHandler) DeleteExercise(c *gin.Context) {
	res := h.services.exercises(c).DeleteExercise(c.Request.Context(), c.Param("id"))
	if !res.Success {
		h.services.abortWithResult(c, res)
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestVideoUpload returns a presigned PUT URL for the exercise's demo video.
func (h *ExerciseHandler) RequestVideoUpload(c *gin.Context) {
	var req VideoUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	upload, err := h.services.exercises(c).RequestVideoUpload(c.Request.Context(), c.Param("id"), req.ContentType)
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to prepare video upload.")
		return
	}
	c.JSON(http.StatusOK, VideoUploadResponse{
		UploadURL: upload.UploadURL,
		ObjectKey: upload.ObjectKey,
		ExpiresAt: upload.ExpiresAt,
	})
}

func (h *ExerciseHandler) GetVideoURL(c *gin.Context) {
	url, err := h.services.exercises(c).VideoDownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.services.abortWithServiceError(c, err, "Failed to generate video URL.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

package api

import (
	"alcyxob/personal-coach/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusForKind maps a failed mutation to its HTTP status.
func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindIdentity, service.KindRelationship:
		return http.StatusBadRequest
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

const internalErrorMessage = "Internal error"

// abortWithResult writes a failed mutation. Internal failures are logged and
// answered with a fixed message.
func (s *Services) abortWithResult(c *gin.Context, res service.Result) {
	status := statusForKind(res.Kind)
	message := res.Error
	if status == http.StatusInternalServerError && res.Kind != service.KindOrphanedAccount {
		s.Deps.Logger.Error("request failed", "path", c.FullPath(), "kind", res.Kind, "error", res.Error)
		message = internalErrorMessage
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message, "kind": res.Kind})
}

// statusForError maps the sentinel errors returned by service reads.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, service.ErrWorkoutNotFound),
		errors.Is(err, service.ErrExerciseNotFound),
		errors.Is(err, service.ErrFeedbackNotFound),
		errors.Is(err, service.ErrNoVideoForExercise):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrVideoUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithServiceError hides the text of unexpected errors from the caller
// and logs it instead.
func (s *Services) abortWithServiceError(c *gin.Context, err error, fallback string) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.Deps.Logger.Error(fallback, "path", c.FullPath(), "error", err)
		abortWithError(c, status, fallback)
		return
	}
	abortWithError(c, status, err.Error())
}

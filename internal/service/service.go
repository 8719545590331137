package service

import (
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/metrics"
	"alcyxob/personal-coach/internal/repository"
	"alcyxob/personal-coach/internal/storage"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"
)

// --- Error Definitions ---
var (
	ErrNotAuthenticated   = errors.New("user is not authenticated")
	ErrForbidden          = errors.New("access denied")
	ErrProfileNotFound    = errors.New("user data not found")
	ErrWorkoutNotFound    = errors.New("workout not found")
	ErrExerciseNotFound   = errors.New("exercise not found")
	ErrFeedbackNotFound   = errors.New("feedback not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrVideoUnavailable   = errors.New("video storage is not configured")
	ErrNoVideoForExercise = errors.New("exercise has no uploaded video")
)

// Kind classifies a failed Result so callers can branch without parsing
// messages.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindIdentity        Kind = "identity"
	KindRelationship    Kind = "relationship"
	KindConflict        Kind = "conflict"
	KindNotFound        Kind = "not_found"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindOrphanedAccount Kind = "orphaned_account"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
)

// Result is returned by every mutation. Failures are values, not errors.
type Result struct {
	Success bool
	ID      string
	Error   string
	Kind    Kind
}

func succeeded(id string) Result {
	return Result{Success: true, ID: id}
}

func failed(kind Kind, message string) Result {
	return Result{Kind: kind, Error: message}
}

// Deps are the collaborators shared by all services. Storage and Metrics may
// be nil.
type Deps struct {
	Store   repository.DocumentStore
	Storage storage.FileStorage
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Clock   func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// sessionUID returns the signed-in, non-disposable account id.
func sessionUID(p identity.Provider) (string, error) {
	s := p.CurrentSession()
	if s == nil || s.Disposable {
		return "", ErrNotAuthenticated
	}
	return s.UID, nil
}

// newestFirst sorts by createdAt descending; zero timestamps go last.
func newestFirst[T any](items []T, createdAt func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := createdAt(items[i]), createdAt(items[j])
		if a.IsZero() {
			return false
		}
		if b.IsZero() {
			return true
		}
		return a.After(b)
	})
}

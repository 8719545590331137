package service

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/repository"
	"alcyxob/personal-coach/internal/storage"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExerciseInput is the payload for a new exercise.
type ExerciseInput struct {
	Name        string
	Description string
	VideoURL    string
}

// ExercisePatch changes the non-nil fields of an exercise.
type ExercisePatch struct {
	Name        *string
	Description *string
	VideoURL    *string
}

// VideoUpload is a presigned PUT for a demo video.
type VideoUpload struct {
	UploadURL string
	ObjectKey string
	ExpiresAt time.Time
}

// --- Service Interface ---
type ExerciseService interface {
	CreateExercise(ctx context.Context, in ExerciseInput) Result
	UpdateExercise(ctx context.Context, id string, patch ExercisePatch) Result
	DeleteExercise(ctx context.Context, id string) Result
	GetExercise(ctx context.Context, id string) (*domain.Exercise, error)
	ListTrainerExercises(ctx context.Context) ([]domain.Exercise, error)

	// RequestVideoUpload presigns an upload for the exercise's demo video and
	// records the object key on the exercise.
	RequestVideoUpload(ctx context.Context, id, contentType string) (*VideoUpload, error)
	VideoDownloadURL(ctx context.Context, id string) (string, error)
}

// --- Service Implementation ---

type exerciseService struct {
	Deps
	provider identity.Provider
}

func NewExerciseService(deps Deps, provider identity.Provider) ExerciseService {
	return &exerciseService{Deps: deps.withDefaults(), provider: provider}
}

// CreateExercise normalizes the video link to its embeddable form.
func (s *exerciseService) CreateExercise(ctx context.Context, in ExerciseInput) Result {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return failed(KindUnauthenticated, err.Error())
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return failed(KindValidation, "name is required")
	}

	exercise := &domain.Exercise{
		ID:          s.Store.NewID(repository.ExercisesCollection),
		Name:        name,
		Description: in.Description,
		VideoURL:    domain.EmbedVideoURL(in.VideoURL),
		CreatedBy:   uid,
		CreatedAt:   s.Clock().UTC(),
	}
	if err := s.Store.Set(ctx, repository.ExercisesCollection, exercise.ID, exercise); err != nil {
		s.Logger.Error("failed to create exercise", "trainerId", uid, "error", err)
		return failed(KindInternal, err.Error())
	}
	return succeeded(exercise.ID)
}

func (s *exerciseService) UpdateExercise(ctx context.Context, id string, patch ExercisePatch) Result {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return failed(KindUnauthenticated, err.Error())
	}
	if patch.Name == nil && patch.Description == nil && patch.VideoURL == nil {
		return failed(KindValidation, "no fields to update")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return failed(KindValidation, "name cannot be empty")
	}

	if _, err := s.owned(ctx, id, uid); err != nil {
		return exerciseFailure(err)
	}

	updates := []repository.FieldUpdate{repository.Set("updatedAt", s.Clock().UTC())}
	if patch.Name != nil {
		updates = append(updates, repository.Set("name", strings.TrimSpace(*patch.Name)))
	}
	if patch.Description != nil {
		updates = append(updates, repository.Set("description", *patch.Description))
	}
	if patch.VideoURL != nil {
		updates = append(updates, repository.Set("videoUrl", domain.EmbedVideoURL(*patch.VideoURL)))
	}
	if err := s.Store.Update(ctx, repository.ExercisesCollection, id, updates...); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return failed(KindNotFound, ErrExerciseNotFound.Error())
		}
		return failed(KindInternal, err.Error())
	}
	return succeeded(id)
}

// DeleteExercise also removes an uploaded demo video, best-effort. Workouts
// keep their own copy of the exercise data and are not touched.
func (s *exerciseService) DeleteExercise(ctx context.Context, id string) Result {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return failed(KindUnauthenticated, err.Error())
	}
	exercise, err := s.owned(ctx, id, uid)
	if err != nil {
		return exerciseFailure(err)
	}

	if err := s.Store.Delete(ctx, repository.ExercisesCollection, id); err != nil {
		s.Logger.Error("failed to delete exercise", "exerciseId", id, "error", err)
		return failed(KindInternal, err.Error())
	}
	if exercise.VideoObjectKey != "" && s.Storage != nil {
		if err := s.Storage.DeleteObject(ctx, exercise.VideoObjectKey); err != nil {
			s.Logger.Warn("failed to delete exercise video", "exerciseId", id, "key", exercise.VideoObjectKey, "error", err)
		}
	}
	return succeeded(id)
}

func (s *exerciseService) GetExercise(ctx context.Context, id string) (*domain.Exercise, error) {
	if _, err := sessionUID(s.provider); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

func (s *exerciseService) ListTrainerExercises(ctx context.Context) ([]domain.Exercise, error) {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return nil, err
	}
	snaps, err := s.Store.Query(ctx, repository.ExercisesCollection, repository.Where("createdBy", uid))
	if err != nil {
		return nil, err
	}
	exercises := make([]domain.Exercise, 0, len(snaps))
	for _, snap := range snaps {
		var e domain.Exercise
		if err := snap.DataTo(&e); err != nil {
			return nil, fmt.Errorf("decode exercise %s: %w", snap.ID, err)
		}
		exercises = append(exercises, e)
	}
	newestFirst(exercises, func(e domain.Exercise) time.Time { return e.CreatedAt })
	return exercises, nil
}

func (s *exerciseService) RequestVideoUpload(ctx context.Context, id, contentType string) (*VideoUpload, error) {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return nil, err
	}
	if s.Storage == nil {
		return nil, ErrVideoUnavailable
	}
	if !strings.HasPrefix(contentType, "video/") {
		return nil, fmt.Errorf("%w: contentType must be a video/* type", ErrInvalidInput)
	}
	exercise, err := s.owned(ctx, id, uid)
	if err != nil {
		return nil, err
	}

	key := storage.VideoObjectKey(id, contentType)
	url, err := s.Storage.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Update(ctx, repository.ExercisesCollection, id,
		repository.Set("videoObjectKey", key),
		repository.Set("updatedAt", s.Clock().UTC()),
	); err != nil {
		return nil, err
	}

	if old := exercise.VideoObjectKey; old != "" {
		if err := s.Storage.DeleteObject(ctx, old); err != nil {
			s.Logger.Warn("failed to delete replaced exercise video", "exerciseId", id, "key", old, "error", err)
		}
	}
	return &VideoUpload{
		UploadURL: url,
		ObjectKey: key,
		ExpiresAt: s.Clock().Add(storage.DefaultPresignedURLExpiry).UTC(),
	}, nil
}

func (s *exerciseService) VideoDownloadURL(ctx context.Context, id string) (string, error) {
	if _, err := sessionUID(s.provider); err != nil {
		return "", err
	}
	if s.Storage == nil {
		return "", ErrVideoUnavailable
	}
	exercise, err := s.get(ctx, id)
	if err != nil {
		return "", err
	}
	if exercise.VideoObjectKey == "" {
		return "", ErrNoVideoForExercise
	}
	return s.Storage.GeneratePresignedDownloadURL(ctx, exercise.VideoObjectKey, storage.DefaultPresignedURLExpiry)
}

func (s *exerciseService) get(ctx context.Context, id string) (*domain.Exercise, error) {
	if id == "" {
		return nil, ErrExerciseNotFound
	}
	snap, err := s.Store.Get(ctx, repository.ExercisesCollection, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	var e domain.Exercise
	if err := snap.DataTo(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// owned loads the exercise and checks it was created by uid.
func (s *exerciseService) owned(ctx context.Context, id, uid string) (*domain.Exercise, error) {
	exercise, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exercise.CreatedBy != uid {
		return nil, ErrForbidden
	}
	return exercise, nil
}

func exerciseFailure(err error) Result {
	switch {
	case errors.Is(err, ErrExerciseNotFound):
		return failed(KindNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return failed(KindForbidden, "only the trainer who created this exercise can change it")
	default:
		return failed(KindInternal, err.Error())
	}
}

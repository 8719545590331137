package service

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const feedbackConflictMessage = "You have already submitted feedback for this day this week"

// --- Service Interface ---
type FeedbackService interface {
	// SubmitFeedback stores the signed-in student's feedback under its derived
	// key. A second submission for the same slot fails with KindConflict.
	SubmitFeedback(ctx context.Context, in domain.FeedbackInput) Result
	// HasFeedbackForDay reports whether the signed-in student already holds
	// feedback for the slot. An empty week means the current week.
	HasFeedbackForDay(ctx context.Context, workoutID string, day domain.DayOfWeek, week string) (bool, error)
	ListMyFeedbacks(ctx context.Context) ([]domain.Feedback, error)
	// ListTrainerFeedbacks gathers feedback on every workout the signed-in
	// trainer owns.
	ListTrainerFeedbacks(ctx context.Context) ([]domain.Feedback, error)
	GetFeedback(ctx context.Context, id string) (*domain.Feedback, error)
}

// --- Service Implementation ---

type feedbackService struct {
	Deps
	provider identity.Provider
}

func NewFeedbackService(deps Deps, provider identity.Provider) FeedbackService {
	return &feedbackService{Deps: deps.withDefaults(), provider: provider}
}

func (s *feedbackService) currentWeek() string {
	return domain.WeekIdentifier(s.Clock())
}

func (s *feedbackService) SubmitFeedback(ctx context.Context, in domain.FeedbackInput) Result {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return failed(KindUnauthenticated, err.Error())
	}

	// studentId always comes from the session, never from the payload.
	in.StudentID = uid
	if in.WeekIdentifier == "" {
		in.WeekIdentifier = s.currentWeek()
	}
	if errs := in.Validate(); len(errs) > 0 {
		return failed(KindValidation, strings.Join(errs, ", "))
	}

	key := domain.FeedbackKey(in.StudentID, in.WorkoutID, in.WeekIdentifier, in.DayOfWeek)

	// Check-then-write: two interleaved submissions for the same key can both
	// pass the check. The store offers no create-if-absent.
	_, err = s.Store.Get(ctx, repository.FeedbacksCollection, key)
	switch {
	case err == nil:
		s.Metrics.FeedbackConflict()
		return failed(KindConflict, feedbackConflictMessage)
	case !errors.Is(err, repository.ErrNotFound):
		s.Logger.Error("feedback existence check failed", "key", key, "error", err)
		return failed(KindInternal, err.Error())
	}

	painLocation := ""
	if *in.HasPain {
		painLocation = strings.TrimSpace(in.PainLocation)
	}
	feedback := &domain.Feedback{
		ID:             key,
		StudentID:      in.StudentID,
		WorkoutID:      in.WorkoutID,
		WeekIdentifier: in.WeekIdentifier,
		DayOfWeek:      in.DayOfWeek,
		EffortLevel:    in.EffortLevel,
		Sensation:      in.Sensation,
		HasPain:        *in.HasPain,
		PainLocation:   painLocation,
		Comment:        in.Comment,
		CreatedAt:      s.Clock().UTC(),
	}
	if err := s.Store.Set(ctx, repository.FeedbacksCollection, key, feedback); err != nil {
		s.Logger.Error("failed to store feedback", "key", key, "error", err)
		return failed(KindInternal, err.Error())
	}
	return succeeded(key)
}

func (s *feedbackService) HasFeedbackForDay(ctx context.Context, workoutID string, day domain.DayOfWeek, week string) (bool, error) {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return false, err
	}
	if workoutID == "" || !day.Valid() {
		return false, fmt.Errorf("%w: workoutId and a valid dayOfWeek are required", ErrInvalidInput)
	}
	if week == "" {
		week = s.currentWeek()
	}

	_, err = s.Store.Get(ctx, repository.FeedbacksCollection, domain.FeedbackKey(uid, workoutID, week, day))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *feedbackService) ListMyFeedbacks(ctx context.Context) ([]domain.Feedback, error) {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return nil, err
	}
	feedbacks, err := s.query(ctx, repository.Where("studentId", uid))
	if err != nil {
		return nil, err
	}
	newestFirst(feedbacks, feedbackCreatedAt)
	return feedbacks, nil
}

// ListTrainerFeedbacks runs one query per owned workout; a workout whose
// query fails is skipped and logged.
func (s *feedbackService) ListTrainerFeedbacks(ctx context.Context) ([]domain.Feedback, error) {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return nil, err
	}
	workouts, err := s.Store.Query(ctx, repository.WorkoutsCollection, repository.Where("personalId", uid))
	if err != nil {
		return nil, err
	}

	all := []domain.Feedback{}
	for _, w := range workouts {
		feedbacks, err := s.query(ctx, repository.Where("workoutId", w.ID))
		if err != nil {
			s.Logger.Warn("failed to load feedback for workout", "workoutId", w.ID, "error", err)
			continue
		}
		all = append(all, feedbacks...)
	}
	newestFirst(all, feedbackCreatedAt)
	return all, nil
}

// GetFeedback is visible to the student who wrote it and to the trainer
// owning the workout it refers to.
func (s *feedbackService) GetFeedback(ctx context.Context, id string) (*domain.Feedback, error) {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return nil, err
	}
	snap, err := s.Store.Get(ctx, repository.FeedbacksCollection, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFeedbackNotFound
		}
		return nil, err
	}
	var feedback domain.Feedback
	if err := snap.DataTo(&feedback); err != nil {
		return nil, err
	}
	if feedback.StudentID == uid {
		return &feedback, nil
	}

	workout, err := getWorkout(ctx, s.Store, feedback.WorkoutID)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if workout.PersonalID != uid {
		return nil, ErrForbidden
	}
	return &feedback, nil
}

func (s *feedbackService) query(ctx context.Context, filters ...repository.Filter) ([]domain.Feedback, error) {
	snaps, err := s.Store.Query(ctx, repository.FeedbacksCollection, filters...)
	if err != nil {
		return nil, err
	}
	feedbacks := make([]domain.Feedback, 0, len(snaps))
	for _, snap := range snaps {
		var f domain.Feedback
		if err := snap.DataTo(&f); err != nil {
			return nil, fmt.Errorf("decode feedback %s: %w", snap.ID, err)
		}
		feedbacks = append(feedbacks, f)
	}
	return feedbacks, nil
}

func feedbackCreatedAt(f domain.Feedback) time.Time {
	return f.CreatedAt
}

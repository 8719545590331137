package service

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/metrics"
	"alcyxob/personal-coach/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateWorkoutInput describes a new workout. StudentID empty means an
// unassigned template.
type CreateWorkoutInput struct {
	Name        string
	Description string
	Days        domain.WorkoutDays
	StudentID   string
}

// WorkoutPatch lists the fields an update may change. Nil fields are left as
// they are. Ownership and assignment cannot be patched.
type WorkoutPatch struct {
	Name        *string
	Description *string
	Days        domain.WorkoutDays
}

func (p WorkoutPatch) empty() bool {
	return p.Name == nil && p.Description == nil && p.Days == nil
}

// --- Service Interface ---
type WorkoutService interface {
	CreateWorkout(ctx context.Context, in CreateWorkoutInput) Result
	UpdateWorkout(ctx context.Context, id string, patch WorkoutPatch) Result
	DeleteWorkout(ctx context.Context, id string) Result
	// GetWorkout returns a workout to its owning trainer or assigned student.
	GetWorkout(ctx context.Context, id string) (*domain.Workout, error)
	ListTrainerWorkouts(ctx context.Context) ([]domain.Workout, error)
	ListStudentWorkouts(ctx context.Context) ([]domain.Workout, error)
}

// --- Service Implementation ---

type workoutService struct {
	Deps
	provider identity.Provider
}

func NewWorkoutService(deps Deps, provider identity.Provider) WorkoutService {
	return &workoutService{Deps: deps.withDefaults(), provider: provider}
}

func validateDays(days domain.WorkoutDays) string {
	if bad := days.InvalidDays(); len(bad) > 0 {
		return "days contains invalid weekday(s): " + strings.Join(bad, ", ")
	}
	return ""
}

// CreateWorkout writes the workout, then adds its id to the assignee's
// assignedWorkouts. The second write is best-effort.
func (s *workoutService) CreateWorkout(ctx context.Context, in CreateWorkoutInput) Result {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return failed(KindUnauthenticated, err.Error())
	}

	var errs []string
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, "name is required")
	}
	if msg := validateDays(in.Days); msg != "" {
		errs = append(errs, msg)
	}
	if len(errs) > 0 {
		return failed(KindValidation, strings.Join(errs, ", "))
	}

	workout := &domain.Workout{
		ID:          s.Store.NewID(repository.WorkoutsCollection),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		PersonalID:  uid,
		Days:        in.Days.Clone(),
		CreatedAt:   s.Clock().UTC(),
	}
	if in.StudentID != "" {
		studentID := in.StudentID
		workout.StudentID = &studentID
	}

	if err := s.Store.Set(ctx, repository.WorkoutsCollection, workout.ID, workout); err != nil {
		s.Logger.Error("failed to create workout", "trainerId", uid, "error", err)
		return failed(KindInternal, err.Error())
	}

	if workout.StudentID != nil {
		err := s.Store.Update(ctx, repository.UsersCollection, *workout.StudentID,
			repository.ArrayUnion("assignedWorkouts", workout.ID))
		if err != nil {
			s.Logger.Warn("failed to add workout to student's assigned list",
				"workoutId", workout.ID, "studentId", *workout.StudentID, "error", err)
			s.Metrics.CacheUpdateFailed(metrics.CacheStudentAssignedWorkouts)
		}
	}
	return succeeded(workout.ID)
}

func (s *workoutService) UpdateWorkout(ctx context.Context, id string, patch WorkoutPatch) Result {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return failed(KindUnauthenticated, err.Error())
	}
	if patch.empty() {
		return failed(KindValidation, "no fields to update")
	}

	var errs []string
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		errs = append(errs, "name cannot be empty")
	}
	if msg := validateDays(patch.Days); msg != "" {
		errs = append(errs, msg)
	}
	if len(errs) > 0 {
		return failed(KindValidation, strings.Join(errs, ", "))
	}

	if res, ok := s.checkOwner(ctx, id, uid); !ok {
		return res
	}

	updates := []repository.FieldUpdate{repository.Set("updatedAt", s.Clock().UTC())}
	if patch.Name != nil {
		updates = append(updates, repository.Set("name", strings.TrimSpace(*patch.Name)))
	}
	if patch.Description != nil {
		updates = append(updates, repository.Set("description", *patch.Description))
	}
	if patch.Days != nil {
		updates = append(updates, repository.Set("days", patch.Days.Clone()))
	}

	if err := s.Store.Update(ctx, repository.WorkoutsCollection, id, updates...); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return failed(KindNotFound, ErrWorkoutNotFound.Error())
		}
		s.Logger.Error("failed to update workout", "workoutId", id, "error", err)
		return failed(KindInternal, err.Error())
	}
	return succeeded(id)
}

// DeleteWorkout removes the id from the assignee's list first, then deletes
// the workout. A failed list update does not stop the delete.
func (s *workoutService) DeleteWorkout(ctx context.Context, id string) Result {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return failed(KindUnauthenticated, err.Error())
	}

	workout, err := getWorkout(ctx, s.Store, id)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			return failed(KindNotFound, err.Error())
		}
		return failed(KindInternal, err.Error())
	}
	if workout.PersonalID != uid {
		return failed(KindForbidden, "only the trainer who created this workout can delete it")
	}

	if studentID := workout.Assignee(); studentID != "" {
		err := s.Store.Update(ctx, repository.UsersCollection, studentID,
			repository.ArrayRemove("assignedWorkouts", id))
		if err != nil {
			s.Logger.Warn("failed to remove workout from student's assigned list",
				"workoutId", id, "studentId", studentID, "error", err)
			s.Metrics.CacheUpdateFailed(metrics.CacheStudentAssignedWorkouts)
		}
	}

	if err := s.Store.Delete(ctx, repository.WorkoutsCollection, id); err != nil {
		s.Logger.Error("failed to delete workout", "workoutId", id, "error", err)
		return failed(KindInternal, err.Error())
	}
	return succeeded(id)
}

func (s *workoutService) GetWorkout(ctx context.Context, id string) (*domain.Workout, error) {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return nil, err
	}
	workout, err := getWorkout(ctx, s.Store, id)
	if err != nil {
		return nil, err
	}
	if workout.PersonalID != uid && workout.Assignee() != uid {
		return nil, ErrForbidden
	}
	return workout, nil
}

func (s *workoutService) ListTrainerWorkouts(ctx context.Context) ([]domain.Workout, error) {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, repository.Where("personalId", uid))
}

func (s *workoutService) ListStudentWorkouts(ctx context.Context) ([]domain.Workout, error) {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, repository.Where("studentId", uid))
}

// list sorts client-side; the store's native order is not relied upon.
func (s *workoutService) list(ctx context.Context, filter repository.Filter) ([]domain.Workout, error) {
	snaps, err := s.Store.Query(ctx, repository.WorkoutsCollection, filter)
	if err != nil {
		return nil, err
	}
	workouts := make([]domain.Workout, 0, len(snaps))
	for _, snap := range snaps {
		var w domain.Workout
		if err := snap.DataTo(&w); err != nil {
			return nil, fmt.Errorf("decode workout %s: %w", snap.ID, err)
		}
		if w.ID == "" {
			w.ID = snap.ID
		}
		workouts = append(workouts, w)
	}
	newestFirst(workouts, func(w domain.Workout) time.Time { return w.CreatedAt })
	return workouts, nil
}

// checkOwner loads the workout and verifies uid owns it.
func (s *workoutService) checkOwner(ctx context.Context, id, uid string) (Result, bool) {
	workout, err := getWorkout(ctx, s.Store, id)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			return failed(KindNotFound, err.Error()), false
		}
		return failed(KindInternal, err.Error()), false
	}
	if workout.PersonalID != uid {
		return failed(KindForbidden, "only the trainer who created this workout can change it"), false
	}
	return Result{}, true
}

func getWorkout(ctx context.Context, store repository.DocumentStore, id string) (*domain.Workout, error) {
	if id == "" {
		return nil, ErrWorkoutNotFound
	}
	snap, err := store.Get(ctx, repository.WorkoutsCollection, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	var w domain.Workout
	if err := snap.DataTo(&w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		w.ID = snap.ID
	}
	return &w, nil
}

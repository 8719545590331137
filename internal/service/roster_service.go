package service

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/metrics"
	"alcyxob/personal-coach/internal/repository"
	"context"
	"fmt"
)

// RepairReport summarizes a RepairAll run.
type RepairReport struct {
	Trainers  int
	Rewritten int
	Failed    []string // trainer uids whose roster could not be rebuilt
}

// --- Service Interface ---
type RosterService interface {
	// ListMyStudents derives the roster from the student profiles pointing
	// at trainerID and rewrites the trainer's students cache to match.
	ListMyStudents(ctx context.Context, trainerID string) ([]domain.User, error)
	GetProfile(ctx context.Context, uid string) (*domain.User, error)
	// RepairAll rebuilds the students cache of every trainer.
	RepairAll(ctx context.Context) (*RepairReport, error)
}

// --- Service Implementation ---

type rosterService struct {
	Deps
}

func NewRosterService(deps Deps) RosterService {
	return &rosterService{Deps: deps.withDefaults()}
}

func (s *rosterService) GetProfile(ctx context.Context, uid string) (*domain.User, error) {
	if uid == "" {
		return nil, ErrProfileNotFound
	}
	return getProfile(ctx, s.Store, uid)
}

func (s *rosterService) ListMyStudents(ctx context.Context, trainerID string) ([]domain.User, error) {
	students, repairErr, err := s.rebuild(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	if repairErr != nil {
		s.Logger.Warn("failed to rewrite trainer roster cache", "trainerId", trainerID, "error", repairErr)
		s.Metrics.CacheUpdateFailed(metrics.CacheTrainerStudents)
	}
	return students, nil
}

// rebuild queries the students of trainerID and, when there are any,
// overwrites the trainer's students field with exactly their ids. repairErr
// reports a failed cache write; err a failed query.
func (s *rosterService) rebuild(ctx context.Context, trainerID string) (students []domain.User, repairErr, err error) {
	if trainerID == "" {
		return nil, nil, ErrNotAuthenticated
	}

	snaps, err := s.Store.Query(ctx, repository.UsersCollection,
		repository.Where("personalId", trainerID),
		repository.Where("userType", domain.UserTypeStudent),
	)
	if err != nil {
		return nil, nil, err
	}

	students = make([]domain.User, 0, len(snaps))
	ids := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		var u domain.User
		if err := snap.DataTo(&u); err != nil {
			return nil, nil, fmt.Errorf("decode student %s: %w", snap.ID, err)
		}
		if u.UID == "" {
			u.UID = snap.ID
		}
		students = append(students, u)
		ids = append(ids, snap.ID)
	}

	if len(ids) == 0 {
		return students, nil, nil
	}
	repairErr = s.Store.Update(ctx, repository.UsersCollection, trainerID, repository.Set("students", ids))
	if repairErr == nil {
		s.Metrics.RosterRepaired()
	}
	return students, repairErr, nil
}

func (s *rosterService) RepairAll(ctx context.Context) (*RepairReport, error) {
	snaps, err := s.Store.Query(ctx, repository.UsersCollection, repository.Where("userType", domain.UserTypeTrainer))
	if err != nil {
		return nil, err
	}

	report := &RepairReport{Trainers: len(snaps)}
	for _, snap := range snaps {
		students, repairErr, err := s.rebuild(ctx, snap.ID)
		if err == nil {
			err = repairErr
		}
		if err != nil {
			s.Logger.Warn("roster repair failed", "trainerId", snap.ID, "error", err)
			report.Failed = append(report.Failed, snap.ID)
			continue
		}
		if len(students) > 0 {
			report.Rewritten++
		}
	}
	return report, nil
}

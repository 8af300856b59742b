package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
	appErrors "github.com/drivelink/drivelink-api/pkg/errors"
)

type matchingUserRepository interface {
	ListActiveInstructors(ctx context.Context) ([]models.User, error)
	ListActiveInstructorsByLocation(ctx context.Context, location string) ([]models.User, error)
	CountActiveStudents(ctx context.Context, instructorID string) (int, error)
	HasActiveVehicleForClass(ctx context.Context, instructorID, licenseClass string) (bool, error)
}

// MatchingService assigns new students to instructors. Location narrows the
// candidate pool, a matching vehicle beats load, and lighter load beats
// everything else. Candidate lists arrive ordered by ID, so ties resolve to
// the lowest ID.
type MatchingService struct {
	users  matchingUserRepository
	logger *zap.Logger
}

// NewMatchingService constructs a MatchingService.
func NewMatchingService(users matchingUserRepository, logger *zap.Logger) *MatchingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchingService{users: users, logger: logger}
}

// FindBestInstructor picks the instructor for a student with the given
// license class and location. Location filtering falls back to the full pool
// when no instructor covers the area.
func (s *MatchingService) FindBestInstructor(ctx context.Context, licenseClass, location string) (*models.User, error) {
	var candidates []models.User
	var err error

	if location != "" {
		candidates, err = s.users.ListActiveInstructorsByLocation(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("match instructor: %w", err)
		}
	}
	if len(candidates) == 0 {
		candidates, err = s.users.ListActiveInstructors(ctx)
		if err != nil {
			return nil, fmt.Errorf("match instructor: %w", err)
		}
	}
	if len(candidates) == 0 {
		return nil, appErrors.ErrNoInstructor
	}

	best := -1
	bestVehicle := false
	bestLoad := 0
	for i := range candidates {
		hasVehicle, err := s.users.HasActiveVehicleForClass(ctx, candidates[i].ID, licenseClass)
		if err != nil {
			return nil, fmt.Errorf("match instructor: %w", err)
		}
		load, err := s.users.CountActiveStudents(ctx, candidates[i].ID)
		if err != nil {
			return nil, fmt.Errorf("match instructor: %w", err)
		}

		if best < 0 || betterCandidate(hasVehicle, load, bestVehicle, bestLoad) {
			best = i
			bestVehicle = hasVehicle
			bestLoad = load
		}
	}

	chosen := &candidates[best]
	s.logger.Sugar().Infow("instructor matched",
		"instructor_id", chosen.ID,
		"license_class", licenseClass,
		"location", location,
		"vehicle_match", bestVehicle,
		"load", bestLoad,
	)
	return chosen, nil
}

func betterCandidate(hasVehicle bool, load int, bestVehicle bool, bestLoad int) bool {
	if hasVehicle != bestVehicle {
		return hasVehicle
	}
	return load < bestLoad
}

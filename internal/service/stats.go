package service

import (
	"context"
	"fmt"

	"github.com/drivelink/drivelink-api/internal/models"
)

type statsStudentRepository interface {
	CountActive(ctx context.Context) (int, error)
}

type statsUserRepository interface {
	CountActiveByRole(ctx context.Context, role string) (int, error)
}

type statsLessonRepository interface {
	CountAll(ctx context.Context) (int, error)
}

// SchoolStats is the admin overview snapshot.
type SchoolStats struct {
	ActiveStudents    int `json:"active_students"`
	ActiveInstructors int `json:"active_instructors"`
	TotalLessons      int `json:"total_lessons"`
}

// StatsService aggregates the counters shown on the admin conversation menu.
type StatsService struct {
	students statsStudentRepository
	users    statsUserRepository
	lessons  statsLessonRepository
}

// NewStatsService constructs a StatsService.
func NewStatsService(students statsStudentRepository, users statsUserRepository, lessons statsLessonRepository) *StatsService {
	return &StatsService{students: students, users: users, lessons: lessons}
}

// Overview returns the current school-wide counters.
func (s *StatsService) Overview(ctx context.Context) (*SchoolStats, error) {
	stats := &SchoolStats{}
	var err error
	if stats.ActiveStudents, err = s.students.CountActive(ctx); err != nil {
		return nil, fmt.Errorf("school stats: %w", err)
	}
	if stats.ActiveInstructors, err = s.users.CountActiveByRole(ctx, models.RoleInstructor); err != nil {
		return nil, fmt.Errorf("school stats: %w", err)
	}
	if stats.TotalLessons, err = s.lessons.CountAll(ctx); err != nil {
		return nil, fmt.Errorf("school stats: %w", err)
	}
	return stats, nil
}

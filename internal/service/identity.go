package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
)

// Identity kinds, in resolution order. Staff records win over student
// records when a phone number somehow holds both.
const (
	IdentityStaff   = "staff"
	IdentityStudent = "student"
	IdentityUnknown = "unknown"
)

// Identity is the resolved owner of a phone number. Exactly one of User and
// Student is set for the staff and student kinds.
type Identity struct {
	Kind    string
	User    *models.User
	Student *models.Student
}

type identityUserRepository interface {
	FindActiveByPhone(ctx context.Context, phone string) (*models.User, error)
}

type identityStudentRepository interface {
	FindActiveByPhone(ctx context.Context, phone string) (*models.Student, error)
}

// IdentityResolver maps a normalized phone number onto a staff member, a
// student, or nobody.
type IdentityResolver struct {
	users    identityUserRepository
	students identityStudentRepository
	logger   *zap.Logger
}

// NewIdentityResolver constructs an IdentityResolver.
func NewIdentityResolver(users identityUserRepository, students identityStudentRepository, logger *zap.Logger) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityResolver{users: users, students: students, logger: logger}
}

// Resolve looks the phone up among active staff first, then active students.
func (r *IdentityResolver) Resolve(ctx context.Context, phone string) (*Identity, error) {
	user, err := r.users.FindActiveByPhone(ctx, phone)
	switch {
	case err == nil:
		return &Identity{Kind: IdentityStaff, User: user}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("resolve staff identity: %w", err)
	}

	student, err := r.students.FindActiveByPhone(ctx, phone)
	switch {
	case err == nil:
		return &Identity{Kind: IdentityStudent, Student: student}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("resolve student identity: %w", err)
	}

	return &Identity{Kind: IdentityUnknown}, nil
}

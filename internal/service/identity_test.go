package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivelink/drivelink-api/internal/models"
)

type mockUserByPhone struct {
	user *models.User
	err  error
}

func (m *mockUserByPhone) FindActiveByPhone(ctx context.Context, phone string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

type mockStudentByPhone struct {
	student *models.Student
	err     error
}

func (m *mockStudentByPhone) FindActiveByPhone(ctx context.Context, phone string) (*models.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.student, nil
}

func TestResolveStaffWinsOverStudent(t *testing.T) {
	users := &mockUserByPhone{user: &models.User{ID: "in-1", Role: models.RoleInstructor}}
	students := &mockStudentByPhone{student: &models.Student{ID: "st-1"}}
	resolver := NewIdentityResolver(users, students, nil)

	identity, err := resolver.Resolve(context.Background(), "+263771234567")
	require.NoError(t, err)
	assert.Equal(t, IdentityStaff, identity.Kind)
	assert.Equal(t, "in-1", identity.User.ID)
	assert.Nil(t, identity.Student)
}

func TestResolveStudent(t *testing.T) {
	users := &mockUserByPhone{err: sql.ErrNoRows}
	students := &mockStudentByPhone{student: &models.Student{ID: "st-1"}}
	resolver := NewIdentityResolver(users, students, nil)

	identity, err := resolver.Resolve(context.Background(), "+263771234567")
	require.NoError(t, err)
	assert.Equal(t, IdentityStudent, identity.Kind)
	assert.Equal(t, "st-1", identity.Student.ID)
}

func TestResolveUnknown(t *testing.T) {
	users := &mockUserByPhone{err: sql.ErrNoRows}
	students := &mockStudentByPhone{err: sql.ErrNoRows}
	resolver := NewIdentityResolver(users, students, nil)

	identity, err := resolver.Resolve(context.Background(), "+263770000000")
	require.NoError(t, err)
	assert.Equal(t, IdentityUnknown, identity.Kind)
}

func TestResolvePropagatesErrors(t *testing.T) {
	users := &mockUserByPhone{err: errors.New("db down")}
	resolver := NewIdentityResolver(users, &mockStudentByPhone{}, nil)

	_, err := resolver.Resolve(context.Background(), "+263771234567")
	assert.Error(t, err)
}

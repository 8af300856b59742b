package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivelink/drivelink-api/internal/models"
	appErrors "github.com/drivelink/drivelink-api/pkg/errors"
)

type mockMatchingUsers struct {
	all        []models.User
	byLocation []models.User
	vehicles   map[string]bool
	loads      map[string]int
}

func (m *mockMatchingUsers) ListActiveInstructors(ctx context.Context) ([]models.User, error) {
	return m.all, nil
}

func (m *mockMatchingUsers) ListActiveInstructorsByLocation(ctx context.Context, location string) ([]models.User, error) {
	return m.byLocation, nil
}

func (m *mockMatchingUsers) CountActiveStudents(ctx context.Context, instructorID string) (int, error) {
	return m.loads[instructorID], nil
}

func (m *mockMatchingUsers) HasActiveVehicleForClass(ctx context.Context, instructorID, licenseClass string) (bool, error) {
	return m.vehicles[instructorID], nil
}

func TestFindBestInstructorPrefersVehicleMatch(t *testing.T) {
	users := &mockMatchingUsers{
		all:      []models.User{{ID: "in-1"}, {ID: "in-2"}},
		vehicles: map[string]bool{"in-2": true},
		loads:    map[string]int{"in-1": 0, "in-2": 9},
	}
	svc := NewMatchingService(users, nil)

	chosen, err := svc.FindBestInstructor(context.Background(), models.LicenseClass4, "")
	require.NoError(t, err)
	assert.Equal(t, "in-2", chosen.ID)
}

func TestFindBestInstructorPrefersLighterLoad(t *testing.T) {
	users := &mockMatchingUsers{
		all:      []models.User{{ID: "in-1"}, {ID: "in-2"}},
		vehicles: map[string]bool{},
		loads:    map[string]int{"in-1": 5, "in-2": 2},
	}
	svc := NewMatchingService(users, nil)

	chosen, err := svc.FindBestInstructor(context.Background(), models.LicenseClass4, "")
	require.NoError(t, err)
	assert.Equal(t, "in-2", chosen.ID)
}

func TestFindBestInstructorTieGoesToFirst(t *testing.T) {
	users := &mockMatchingUsers{
		all:      []models.User{{ID: "in-1"}, {ID: "in-2"}},
		vehicles: map[string]bool{},
		loads:    map[string]int{"in-1": 3, "in-2": 3},
	}
	svc := NewMatchingService(users, nil)

	chosen, err := svc.FindBestInstructor(context.Background(), models.LicenseClass4, "")
	require.NoError(t, err)
	assert.Equal(t, "in-1", chosen.ID)
}

func TestFindBestInstructorUsesLocationPool(t *testing.T) {
	users := &mockMatchingUsers{
		all:        []models.User{{ID: "in-1"}},
		byLocation: []models.User{{ID: "in-3"}},
		vehicles:   map[string]bool{},
		loads:      map[string]int{},
	}
	svc := NewMatchingService(users, nil)

	chosen, err := svc.FindBestInstructor(context.Background(), models.LicenseClass4, "Avondale")
	require.NoError(t, err)
	assert.Equal(t, "in-3", chosen.ID)
}

func TestFindBestInstructorFallsBackToFullPool(t *testing.T) {
	users := &mockMatchingUsers{
		all:      []models.User{{ID: "in-1"}},
		vehicles: map[string]bool{},
		loads:    map[string]int{},
	}
	svc := NewMatchingService(users, nil)

	chosen, err := svc.FindBestInstructor(context.Background(), models.LicenseClass4, "Gweru")
	require.NoError(t, err)
	assert.Equal(t, "in-1", chosen.ID)
}

func TestFindBestInstructorNoCandidates(t *testing.T) {
	svc := NewMatchingService(&mockMatchingUsers{}, nil)

	_, err := svc.FindBestInstructor(context.Background(), models.LicenseClass4, "")
	assert.ErrorIs(t, err, appErrors.ErrNoInstructor)
}

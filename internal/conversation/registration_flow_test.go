package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivelink/drivelink-api/internal/models"
	appErrors "github.com/drivelink/drivelink-api/pkg/errors"
)

type memoryRegistrationStore struct {
	states map[string]*models.RegistrationState
}

func newMemoryRegistrationStore() *memoryRegistrationStore {
	return &memoryRegistrationStore{states: map[string]*models.RegistrationState{}}
}

func (s *memoryRegistrationStore) GetRegistration(ctx context.Context, phone string) (*models.RegistrationState, error) {
	state, ok := s.states[phone]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	clone := *state
	return &clone, nil
}

func (s *memoryRegistrationStore) SaveRegistration(ctx context.Context, state *models.RegistrationState, ttl time.Duration) error {
	clone := *state
	s.states[state.Phone] = &clone
	return nil
}

func (s *memoryRegistrationStore) DeleteRegistration(ctx context.Context, phone string) error {
	delete(s.states, phone)
	return nil
}

type mockStudentCreator struct {
	created *models.Student
}

func (m *mockStudentCreator) Create(ctx context.Context, student *models.Student) error {
	student.ID = "st-new"
	m.created = student
	return nil
}

type mockMatcher struct {
	instructor *models.User
	err        error
}

func (m *mockMatcher) FindBestInstructor(ctx context.Context, licenseClass, location string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.instructor, nil
}

func TestRegistrationFullSequence(t *testing.T) {
	store := newMemoryRegistrationStore()
	students := &mockStudentCreator{}
	instructorPhone := "+263779999999"
	matcher := &mockMatcher{instructor: &models.User{ID: "in-1", Username: "mbanda", Phone: &instructorPhone}}
	outbound := &recordingOutbound{}
	flow := NewRegistrationFlow(store, students, matcher, outbound, time.Hour, nil, nil)

	const phone = "+263771234567"
	ctx := context.Background()

	reply, err := flow.Handle(ctx, phone, "Hi")
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "Welcome to DriveLink")
	assert.Contains(t, reply.Render(), "full name")

	reply, err = flow.Handle(ctx, phone, "Tariro Moyo")
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "Thanks Tariro")
	assert.Contains(t, reply.Render(), "email")

	reply, err = flow.Handle(ctx, phone, "tariro@example.com")
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "area")

	reply, err = flow.Handle(ctx, phone, "Avondale")
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "Which license")

	reply, err = flow.Handle(ctx, phone, "1")
	require.NoError(t, err)
	rendered := reply.Render()
	assert.Contains(t, rendered, "Name: Tariro Moyo")
	assert.Contains(t, rendered, "Email: tariro@example.com")
	assert.Contains(t, rendered, "Area: Avondale")
	assert.Contains(t, rendered, "Confirm and register")

	reply, err = flow.Handle(ctx, phone, "1")
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "You're registered, Tariro")
	assert.Contains(t, reply.Render(), "mbanda")

	require.NotNil(t, students.created)
	assert.Equal(t, "Tariro Moyo", students.created.Name)
	assert.Equal(t, phone, students.created.Phone)
	assert.Equal(t, models.LicenseClass4, students.created.LicenseType)
	require.NotNil(t, students.created.InstructorID)
	assert.Equal(t, "in-1", *students.created.InstructorID)
	assert.True(t, students.created.IsActive)

	require.Len(t, outbound.sent, 1)
	assert.Equal(t, instructorPhone, outbound.sent[0].To)
	assert.Contains(t, outbound.sent[0].Body, "Tariro Moyo")

	_, remaining := store.states[phone]
	assert.False(t, remaining, "registration state cleared after signup")
}

func TestRegistrationSkipEmail(t *testing.T) {
	store := newMemoryRegistrationStore()
	students := &mockStudentCreator{}
	flow := NewRegistrationFlow(store, students, &mockMatcher{err: appErrors.ErrNoInstructor}, &recordingOutbound{}, time.Hour, nil, nil)

	const phone = "+263771234567"
	ctx := context.Background()
	steps := []string{"Hi", "Tariro Moyo", "skip", "Avondale", "1", "1"}
	var reply Reply
	var err error
	for _, msg := range steps {
		reply, err = flow.Handle(ctx, phone, msg)
		require.NoError(t, err)
	}

	assert.Contains(t, reply.Render(), "You're registered")
	require.NotNil(t, students.created)
	assert.Nil(t, students.created.Email)
	assert.Nil(t, students.created.InstructorID, "registration proceeds unassigned when no instructor matches")
}

func TestRegistrationInvalidEmailRetries(t *testing.T) {
	store := newMemoryRegistrationStore()
	flow := NewRegistrationFlow(store, &mockStudentCreator{}, &mockMatcher{}, &recordingOutbound{}, time.Hour, nil, nil)

	const phone = "+263771234567"
	ctx := context.Background()
	_, err := flow.Handle(ctx, phone, "Hi")
	require.NoError(t, err)
	_, err = flow.Handle(ctx, phone, "Tariro Moyo")
	require.NoError(t, err)

	reply, err := flow.Handle(ctx, phone, "not an email")
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "doesn't look like an email")
	assert.Equal(t, models.RegStepEmail, store.states[phone].Step)
}

func TestRegistrationStartOver(t *testing.T) {
	store := newMemoryRegistrationStore()
	flow := NewRegistrationFlow(store, &mockStudentCreator{}, &mockMatcher{}, &recordingOutbound{}, time.Hour, nil, nil)

	const phone = "+263771234567"
	ctx := context.Background()
	for _, msg := range []string{"Hi", "Tariro Moyo", "skip", "Avondale", "1"} {
		_, err := flow.Handle(ctx, phone, msg)
		require.NoError(t, err)
	}

	reply, err := flow.Handle(ctx, phone, "2")
	require.NoError(t, err)
	assert.Contains(t, reply.Render(), "start over")
	assert.Equal(t, models.RegStepName, store.states[phone].Step)
	assert.Empty(t, store.states[phone].Name)
}

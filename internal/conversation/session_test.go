package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivelink/drivelink-api/internal/models"
	"github.com/drivelink/drivelink-api/pkg/config"
	appErrors "github.com/drivelink/drivelink-api/pkg/errors"
)

type memorySessionStore struct {
	sessions map[string]*models.Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: map[string]*models.Session{}}
}

func (s *memorySessionStore) GetSession(ctx context.Context, key string) (*models.Session, error) {
	session, ok := s.sessions[key]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	copied := *session
	return &copied, nil
}

func (s *memorySessionStore) SaveSession(ctx context.Context, key string, session *models.Session, ttl time.Duration) error {
	copied := *session
	s.sessions[key] = &copied
	return nil
}

func whatsAppTestConfig() config.WhatsAppConfig {
	return config.WhatsAppConfig{
		SessionTTL:        30 * time.Minute,
		BookingContextTTL: 15 * time.Minute,
		RegistrationTTL:   30 * time.Minute,
		DedupTTL:          10 * time.Minute,
	}
}

func newTestSessionManager(store sessionStore, now time.Time) *SessionManager {
	m := NewSessionManager(store, whatsAppTestConfig(), time.UTC, nil)
	m.now = func() time.Time { return now }
	return m
}

func TestSessionLoadMissingStartsFresh(t *testing.T) {
	now := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	m := newTestSessionManager(newMemorySessionStore(), now)

	session, err := m.Load(context.Background(), "+263771234567")
	require.NoError(t, err)
	assert.Equal(t, models.StateMainMenu, session.State)
	assert.True(t, session.Payload.Empty())
}

func TestSessionRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	store := newMemorySessionStore()
	m := newTestSessionManager(store, now)

	session, err := m.Load(context.Background(), "+263771234567")
	require.NoError(t, err)
	session.State = models.StateAwaitingDuration
	require.NoError(t, m.Save(context.Background(), session))

	reloaded, err := m.Load(context.Background(), "+263771234567")
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingDuration, reloaded.State)
}

func TestSessionExpiresAfterIdle(t *testing.T) {
	start := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	store := newMemorySessionStore()
	m := newTestSessionManager(store, start)

	session, err := m.Load(context.Background(), "+263771234567")
	require.NoError(t, err)
	session.State = models.StateAwaitingCancelSelect
	require.NoError(t, m.Save(context.Background(), session))

	m.now = func() time.Time { return start.Add(31 * time.Minute) }
	reloaded, err := m.Load(context.Background(), "+263771234567")
	require.NoError(t, err)
	assert.Equal(t, models.StateMainMenu, reloaded.State)
}

func TestBookingContextExpiresSooner(t *testing.T) {
	start := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	store := newMemorySessionStore()
	m := newTestSessionManager(store, start)

	session, err := m.Load(context.Background(), "+263771234567")
	require.NoError(t, err)
	session.State = models.StateAwaitingBookingSlot
	session.Payload = models.SessionPayload{
		DurationMinutes: 30,
		Slots:           []time.Time{start.Add(2 * time.Hour)},
	}
	require.NoError(t, m.Save(context.Background(), session))

	// Still alive at 14 minutes.
	m.now = func() time.Time { return start.Add(14 * time.Minute) }
	reloaded, err := m.Load(context.Background(), "+263771234567")
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingBookingSlot, reloaded.State)

	// Stale at 16 minutes even though the session TTL has not passed.
	m.now = func() time.Time { return start.Add(16 * time.Minute) }
	reloaded, err = m.Load(context.Background(), "+263771234567")
	require.NoError(t, err)
	assert.Equal(t, models.StateMainMenu, reloaded.State)
	assert.True(t, reloaded.Payload.Empty())
}

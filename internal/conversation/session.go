package conversation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
	"github.com/drivelink/drivelink-api/internal/repository"
	"github.com/drivelink/drivelink-api/pkg/config"
	appErrors "github.com/drivelink/drivelink-api/pkg/errors"
	"github.com/drivelink/drivelink-api/pkg/logger"
)

type sessionStore interface {
	GetSession(ctx context.Context, key string) (*models.Session, error)
	SaveSession(ctx context.Context, key string, session *models.Session, ttl time.Duration) error
}

// SessionManager loads and persists per-phone conversation state, applying
// the expiry rules: a session goes stale 30 minutes after its last activity,
// and cached booking context goes stale after 15. Expiry is silent; callers
// always get a usable session back.
type SessionManager struct {
	store  sessionStore
	cfg    config.WhatsAppConfig
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionManager constructs a SessionManager. Session keys are derived
// from the calendar day in the given location.
func NewSessionManager(store sessionStore, cfg config.WhatsAppConfig, loc *time.Location, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SessionManager{store: store, cfg: cfg, loc: loc, logger: logger, now: time.Now}
}

// Load returns the phone's current session, resetting it to the main menu
// when absent or expired.
func (m *SessionManager) Load(ctx context.Context, phone string) (*models.Session, error) {
	now := m.now().In(m.loc)
	key := repository.SessionKey(phone, now)

	session, err := m.store.GetSession(ctx, key)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return m.fresh(phone, now), nil
		}
		return nil, err
	}

	idle := now.Sub(session.LastActivity)
	if idle > m.cfg.SessionTTL {
		return m.fresh(phone, now), nil
	}
	if !session.Payload.Empty() && idle > m.cfg.BookingContextTTL {
		m.logger.Sugar().Debugw("booking context expired", "phone", logger.MaskPhone(phone), "state", session.State)
		return m.fresh(phone, now), nil
	}
	return session, nil
}

// Save stamps activity and persists the session under today's key.
func (m *SessionManager) Save(ctx context.Context, session *models.Session) error {
	now := m.now().In(m.loc)
	session.LastActivity = now.UTC()
	session.IsActive = true
	return m.store.SaveSession(ctx, repository.SessionKey(session.Phone, now), session, m.cfg.SessionTTL)
}

func (m *SessionManager) fresh(phone string, now time.Time) *models.Session {
	return &models.Session{
		Phone:        phone,
		State:        models.StateMainMenu,
		LastActivity: now.UTC(),
		IsActive:     true,
	}
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
	appErrors "github.com/drivelink/drivelink-api/pkg/errors"
)

// SessionRepository stores conversation sessions and registration state in
// Redis under stable string keys. Reads of absent keys surface ErrCacheMiss.
type SessionRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(client *redis.Client, logger *zap.Logger) *SessionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRepository{client: client, logger: logger}
}

// SessionKey builds the per-phone, per-day session key.
func SessionKey(phone string, day time.Time) string {
	return fmt.Sprintf("session_%s_%s", phone, day.Format("20060102"))
}

// RegistrationKey builds the per-phone registration key.
func RegistrationKey(phone string) string {
	return fmt.Sprintf("registration_%s", phone)
}

// GetSession loads the session stored under the key.
func (r *SessionRepository) GetSession(ctx context.Context, key string) (*models.Session, error) {
	var session models.Session
	if err := r.get(ctx, key, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SaveSession stores the session under the key with the given TTL.
func (r *SessionRepository) SaveSession(ctx context.Context, key string, session *models.Session, ttl time.Duration) error {
	return r.set(ctx, key, session, ttl)
}

// DeleteSession removes the session stored under the key.
func (r *SessionRepository) DeleteSession(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// GetRegistration loads the registration state for the phone.
func (r *SessionRepository) GetRegistration(ctx context.Context, phone string) (*models.RegistrationState, error) {
	var state models.RegistrationState
	if err := r.get(ctx, RegistrationKey(phone), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveRegistration stores the registration state with the given TTL.
func (r *SessionRepository) SaveRegistration(ctx context.Context, state *models.RegistrationState, ttl time.Duration) error {
	return r.set(ctx, RegistrationKey(state.Phone), state, ttl)
}

// DeleteRegistration removes the registration state for the phone.
func (r *SessionRepository) DeleteRegistration(ctx context.Context, phone string) error {
	if err := r.client.Del(ctx, RegistrationKey(phone)).Err(); err != nil {
		return fmt.Errorf("redis delete registration %s: %w", phone, err)
	}
	return nil
}

// ClaimOnce atomically records the key with a TTL and reports whether this
// caller was first. Used for webhook deduplication and at-most-once
// low-balance warnings.
func (r *SessionRepository) ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Release drops a previously claimed key so the next delivery of the same
// event can claim it again.
func (r *SessionRepository) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}

func (r *SessionRepository) get(ctx context.Context, key string, dest interface{}) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal value for %s: %w", key, err)
	}
	return nil
}

func (r *SessionRepository) set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

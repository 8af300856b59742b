package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SystemConfigRepository reads and writes runtime configuration overrides.
type SystemConfigRepository struct {
	db *sqlx.DB
}

// NewSystemConfigRepository constructs a SystemConfigRepository.
func NewSystemConfigRepository(db *sqlx.DB) *SystemConfigRepository {
	return &SystemConfigRepository{db: db}
}

// Get returns the configured value for the key, or the fallback when the
// key is absent or unset.
func (r *SystemConfigRepository) Get(ctx context.Context, key, fallback string) (string, error) {
	const query = `SELECT value FROM system_config WHERE key = $1`
	var value sql.NullString
	if err := r.db.GetContext(ctx, &value, query, key); err != nil {
		if err == sql.ErrNoRows {
			return fallback, nil
		}
		return fallback, fmt.Errorf("get config %s: %w", key, err)
	}
	if !value.Valid || value.String == "" {
		return fallback, nil
	}
	return value.String, nil
}

// Set upserts the configured value for the key.
func (r *SystemConfigRepository) Set(ctx context.Context, key, value string) error {
	const query = `INSERT INTO system_config (id, key, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

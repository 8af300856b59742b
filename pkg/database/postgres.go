package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/drivelink/drivelink-api/pkg/config"
)

// Pool defaults sized for the webhook workload: many short reads plus the
// serializable booking transaction, which retries under contention and
// holds its connection longer than anything else in the service.
const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
	connMaxLifetime     = time.Hour
	connMaxIdleTime     = 30 * time.Minute
	connectTimeout      = 5 * time.Second
)

// NewPostgres opens and verifies a PostgreSQL connection pool.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
		int(connectTimeout.Seconds()),
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	open := cfg.MaxOpenConns
	if open <= 0 {
		open = defaultMaxOpenConns
	}
	idle := cfg.MaxIdleConns
	if idle <= 0 {
		idle = defaultMaxIdleConns
	}
	db.SetMaxOpenConns(open)
	db.SetMaxIdleConns(idle)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

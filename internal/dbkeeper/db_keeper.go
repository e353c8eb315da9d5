package dbkeeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate"
	"github.com/golang-migrate/migrate/database/postgres"
	_ "github.com/golang-migrate/migrate/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/drstein77/hostfront/internal/models"
)

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

type DBKeeper struct {
	pool *pgxpool.Pool
	log  Log
}

// NewDBKeeper connects to the database and applies pending migrations.
// It returns nil when the dsn is empty or anything fails, so callers can
// run without persistence.
func NewDBKeeper(ctx context.Context, dsn func() string, migrations func() string, log Log) *DBKeeper {
	addr := dsn()
	if addr == "" {
		log.Info("database dsn is empty, sessions stay in memory")
		return nil
	}

	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		log.Error("Unable to parse database DSN: ", zap.Error(err))
		return nil
	}

	if err := migrateUp(addr, migrations()); err != nil {
		log.Error("Error while performing migration: ", zap.Error(err))
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		log.Error("Unable to connect to database: ", zap.Error(err))
		return nil
	}

	log.Info("Connected!")

	return &DBKeeper{
		pool: pool,
		log:  log,
	}
}

func migrateUp(dsn, dir string) error {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse connection string: %w", err)
	}
	sqlDB := stdlib.OpenDB(*connConfig)
	defer sqlDB.Close()

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("get migration driver: %w", err)
	}

	// migrations live next to the binary or two levels up when run from cmd/
	if _, err := os.Stat(dir); err != nil && !filepath.IsAbs(dir) {
		dir = filepath.Join("..", "..", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(abs), "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (kp *DBKeeper) LoadSessions(ctx context.Context) ([]*models.Session, error) {
	if kp.pool == nil {
		return nil, fmt.Errorf("database connection pool is nil")
	}

	rows, err := kp.pool.Query(ctx, `
		SELECT id, cart_token, items, country, currency, created_at, updated_at, expires_at
		FROM sessions
		WHERE expires_at > now()
	`)
	if err != nil {
		kp.log.Error("Failed to execute query", zap.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var (
			s     models.Session
			items []byte
		)
		if err := rows.Scan(&s.ID, &s.CartToken, &items, &s.Country, &s.Currency, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt); err != nil {
			kp.log.Error("Failed to scan row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(items) > 0 {
			if err := json.Unmarshal(items, &s.Items); err != nil {
				return nil, fmt.Errorf("decode items of session %s: %w", s.ID, err)
			}
		}
		sessions = append(sessions, &s)
	}

	if rows.Err() != nil {
		kp.log.Error("Error occurred during rows iteration", zap.Error(rows.Err()))
		return nil, fmt.Errorf("error during rows iteration: %w", rows.Err())
	}

	kp.log.Info("Successfully retrieved sessions", zap.Int("count", len(sessions)))
	return sessions, nil
}

func (kp *DBKeeper) SaveSession(ctx context.Context, s *models.Session) error {
	if kp.pool == nil {
		return fmt.Errorf("database connection pool is nil")
	}

	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	_, err = kp.pool.Exec(ctx, `
		INSERT INTO sessions (id, cart_token, items, country, currency, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			cart_token = EXCLUDED.cart_token,
			items      = EXCLUDED.items,
			country    = EXCLUDED.country,
			currency   = EXCLUDED.currency,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`, s.ID, s.CartToken, items, s.Country, s.Currency, s.CreatedAt, s.UpdatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (kp *DBKeeper) DeleteSession(ctx context.Context, id string) error {
	if kp.pool == nil {
		return fmt.Errorf("database connection pool is nil")
	}
	if _, err := kp.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (kp *DBKeeper) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if kp.pool == nil {
		return 0, errors.New("database connection pool is nil")
	}
	tag, err := kp.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (kp *DBKeeper) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := kp.pool.Ping(ctx); err != nil {
		kp.log.Error("Database ping failed", zap.Error(err))
		return false
	}

	return true
}

func (kp *DBKeeper) Close() bool {
	if kp.pool != nil {
		kp.pool.Close()
		kp.log.Info("Database connection pool closed")
		return true
	}
	kp.log.Info("Attempted to close a nil database connection pool")
	return false
}

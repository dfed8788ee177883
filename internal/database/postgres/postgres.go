// Package postgres manages the PostgreSQL connection pool backing the product
// repository, including schema migrations and background health monitoring.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/config"
)

const (
	healthCheckTimeout = 5 * time.Second
)

// ErrDatabaseUnavailable is returned when database operations are attempted while database is unavailable.
var ErrDatabaseUnavailable = errors.New("database is not available")

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Manager manages the PostgreSQL database connection pool and health monitoring.
type Manager struct {
	pool      *pgxpool.Pool
	config    *config.DatabaseConfig
	dsn       string
	logger    *logrus.Logger
	available bool
	migrated  bool
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewManager creates a new database manager with connection pool and health monitoring.
// If database credentials are not configured, it returns a manager without connection.
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	manager := &Manager{
		config: &cfg.PostgresDatabase,
		dsn:    cfg.PostgresDatabaseDSN(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.IsPostgresDatabaseConfigured() {
		if err := manager.connect(); err != nil {
			logger.WithError(err).Warn("Failed to connect to PostgreSQL database on startup, will retry periodically")
		}

		go manager.healthMonitor()
	} else {
		logger.Info("PostgreSQL database not configured, running without PostgreSQL")
	}

	return manager, nil
}

// connect establishes the database connection pool and applies pending migrations.
func (m *Manager) connect() error {
	poolConfig, err := pgxpool.ParseConfig(m.dsn)
	if err != nil {
		return err
	}

	poolConfig.MaxConns = m.config.MaxConn
	poolConfig.MinConns = m.config.MinConn
	poolConfig.MaxConnLifetime = m.config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = m.config.MaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = m.config.ConnectTimeout

	ctx, cancel := context.WithTimeout(m.ctx, m.config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return err
	}

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return pingErr
	}

	m.mu.RLock()
	migrated := m.migrated
	m.mu.RUnlock()

	if !migrated {
		if migrateErr := m.migrate(ctx, pool); migrateErr != nil {
			pool.Close()
			return migrateErr
		}
	}

	m.mu.Lock()
	if m.pool != nil {
		m.pool.Close()
	}
	m.pool = pool
	m.available = true
	m.migrated = true
	m.mu.Unlock()

	m.logger.Info("Successfully connected to PostgreSQL database")
	return nil
}

// migrate creates the configured schema and runs the embedded goose migrations.
func (m *Manager) migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if m.config.Schema != "" {
		stmt := "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{m.config.Schema}.Sanitize()
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(m.logger)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// healthMonitor runs in a goroutine to periodically check database connectivity.
func (m *Manager) healthMonitor() {
	ticker := time.NewTicker(m.config.HealthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

// checkHealth performs a health check on the database connection.
func (m *Manager) checkHealth() {
	m.mu.RLock()
	pool := m.pool
	wasAvailable := m.available
	m.mu.RUnlock()

	if pool == nil {
		if err := m.connect(); err != nil {
			m.setAvailable(false)

			if wasAvailable {
				m.logger.WithError(err).Warn("PostgreSQL database connection lost, attempting reconnection")
			}
		}
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, healthCheckTimeout)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		m.setAvailable(false)

		if wasAvailable {
			m.logger.WithError(err).Warn("PostgreSQL database health check failed, connection lost")
		}

		if reconnectErr := m.connect(); reconnectErr != nil {
			m.logger.WithError(reconnectErr).Debug("PostgreSQL reconnection attempt failed")
		}
		return
	}

	if !m.setAvailable(true) {
		m.logger.Info("PostgreSQL database connection restored")
	}
}

// setAvailable stores the availability flag and returns the previous value.
func (m *Manager) setAvailable(available bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	previous := m.available
	m.available = available
	return previous
}

// IsAvailable returns true if the database is currently available.
func (m *Manager) IsAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available
}

// Pool returns the database connection pool. Returns nil if database is not available.
func (m *Manager) Pool() *pgxpool.Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.available {
		return m.pool
	}
	return nil
}

// Close closes the database connection pool and stops health monitoring.
func (m *Manager) Close() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
	m.available = false
}

// Ping performs a health check on the database connection.
func (m *Manager) Ping(ctx context.Context) error {
	pool := m.Pool()
	if pool == nil {
		return ErrDatabaseUnavailable
	}
	return pool.Ping(ctx)
}

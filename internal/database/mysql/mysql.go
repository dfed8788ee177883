// Package mysql manages the MySQL connection pool backing the product
// repository as an alternative to PostgreSQL.
package mysql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	// Import MySQL driver for database/sql.
	_ "github.com/go-sql-driver/mysql"
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

// Manager manages the MySQL database connection pool and health monitoring.
type Manager struct {
	db        *sql.DB
	config    *config.MySQLConfig
	dsn       string
	logger    *logrus.Logger
	available bool
	migrated  bool
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewManager creates a new MySQL database manager with connection pool and health monitoring.
// If database credentials are not configured, it returns a manager without connection.
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	manager := &Manager{
		config: &cfg.MySQLDatabase,
		dsn:    cfg.MySQLDSN(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.IsMySQLDatabaseConfigured() {
		if err := manager.connect(); err != nil {
			logger.WithError(err).Warn("Failed to connect to MySQL database on startup, will retry periodically")
		}

		go manager.healthMonitor()
	} else {
		logger.Info("MySQL database not configured, running without MySQL")
	}

	return manager, nil
}

// connect establishes the database connection pool and applies pending migrations.
func (m *Manager) connect() error {
	db, err := sql.Open("mysql", m.dsn)
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(m.config.MaxConn)
	db.SetMaxIdleConns(m.config.MinConn)
	db.SetConnMaxLifetime(m.config.MaxConnLifetime)
	db.SetConnMaxIdleTime(m.config.MaxConnIdleTime)

	ctx, cancel := context.WithTimeout(m.ctx, m.config.ConnectTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return pingErr
	}

	m.mu.RLock()
	migrated := m.migrated
	m.mu.RUnlock()

	if !migrated {
		if migrateErr := m.migrate(ctx, db); migrateErr != nil {
			_ = db.Close()
			return migrateErr
		}
	}

	m.mu.Lock()
	if m.db != nil {
		_ = m.db.Close()
	}
	m.db = db
	m.available = true
	m.migrated = true
	m.mu.Unlock()

	m.logger.Info("Successfully connected to MySQL database")
	return nil
}

// migrate runs the embedded goose migrations.
func (m *Manager) migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(m.logger)

	if err := goose.SetDialect("mysql"); err != nil {
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
	db := m.db
	wasAvailable := m.available
	m.mu.RUnlock()

	if db == nil {
		if err := m.connect(); err != nil {
			m.setAvailable(false)

			if wasAvailable {
				m.logger.WithError(err).Warn("MySQL database connection lost, attempting reconnection")
			}
		}
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, healthCheckTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		m.setAvailable(false)

		if wasAvailable {
			m.logger.WithError(err).Warn("MySQL database health check failed, connection lost")
		}

		if reconnectErr := m.connect(); reconnectErr != nil {
			m.logger.WithError(reconnectErr).Debug("MySQL reconnection attempt failed")
		}
		return
	}

	if !m.setAvailable(true) {
		m.logger.Info("MySQL database connection restored")
	}
}

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

// DB returns the database connection. Returns nil if database is not available.
func (m *Manager) DB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.available {
		return m.db
	}
	return nil
}

// Close closes the database connection and stops health monitoring.
func (m *Manager) Close() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		_ = m.db.Close()
		m.db = nil
	}
	m.available = false
}

// Ping performs a health check on the database connection.
func (m *Manager) Ping(ctx context.Context) error {
	db := m.DB()
	if db == nil {
		return ErrDatabaseUnavailable
	}
	return db.PingContext(ctx)
}

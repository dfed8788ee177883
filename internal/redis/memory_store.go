package redis

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/models"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

const (
	// CleanupInterval is the interval between expired item cleanup runs.
	CleanupInterval = 5 * time.Minute
)

// MemoryStore is an in-memory implementation of the Store interface.
// Values are copied in and out so callers never share mutable state with the store.
type MemoryStore struct {
	credentials   map[string]*expiringItem[models.CachedCredential]
	sessions      map[string]*expiringItem[models.Session]
	logger        *logrus.Logger
	mu            sync.RWMutex
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// expiringItem wraps data with expiration time for TTL support.
type expiringItem[T any] struct {
	Data      T
	ExpiresAt time.Time
}

// isExpired checks if the item has expired.
func (e *expiringItem[T]) isExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// NewMemoryStore creates a new in-memory store with TTL cleanup.
func NewMemoryStore(log *logrus.Logger) *MemoryStore {
	store := &MemoryStore{
		credentials:   make(map[string]*expiringItem[models.CachedCredential]),
		sessions:      make(map[string]*expiringItem[models.Session]),
		logger:        log,
		cleanupTicker: time.NewTicker(CleanupInterval),
		stopCleanup:   make(chan struct{}),
	}

	go store.cleanupExpiredItems()

	log.Info("In-memory store initialized with TTL cleanup")
	return store
}

// cleanupExpiredItems runs periodically to remove expired items.
func (m *MemoryStore) cleanupExpiredItems() {
	defer m.cleanupTicker.Stop()

	for {
		select {
		case <-m.cleanupTicker.C:
			m.performCleanup()
		case <-m.stopCleanup:
			return
		}
	}
}

// performCleanup removes expired items from all maps.
func (m *MemoryStore) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	expired := cleanExpired(m.credentials, now) + cleanExpired(m.sessions, now)

	if expired > 0 {
		m.logger.WithField("expired_items", expired).Debug("Cleaned up expired items from memory store")
	}
}

func cleanExpired[T any](items map[string]*expiringItem[T], now time.Time) int {
	expired := 0
	for key, item := range items {
		if item.isExpired(now) {
			delete(items, key)
			expired++
		}
	}
	return expired
}

// Close shuts down the memory store and cleanup goroutine.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.stopCleanup)
		m.logger.Info("Memory store closed")
	})
	return nil
}

// Ping always returns nil for memory store (always available).
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// StoreCredential stores a credential with TTL.
func (m *MemoryStore) StoreCredential(_ context.Context, cred *models.CachedCredential, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.credentials[credentialKey(cred.RegistrationID, cred.PrincipalKey)] = &expiringItem[models.CachedCredential]{
		Data:      *cred,
		ExpiresAt: time.Now().Add(ttl),
	}
	m.logger.WithFields(logrus.Fields{
		"registration_id": cred.RegistrationID,
		"principal":       cred.PrincipalKey,
		"access_token":    logger.MaskToken(cred.AccessToken),
	}).Debug("Credential stored in memory")
	return nil
}

// GetCredential retrieves a credential from memory.
func (m *MemoryStore) GetCredential(_ context.Context, registrationID, principalKey string) (*models.CachedCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.credentials[credentialKey(registrationID, principalKey)]
	if !exists || item.isExpired(time.Now()) {
		return nil, ErrCacheMiss
	}

	cred := item.Data
	return &cred, nil
}

// DeleteCredential removes a credential from memory.
func (m *MemoryStore) DeleteCredential(_ context.Context, registrationID, principalKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.credentials, credentialKey(registrationID, principalKey))
	return nil
}

// StoreSession stores a session with TTL.
func (m *MemoryStore) StoreSession(_ context.Context, session *models.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = &expiringItem[models.Session]{
		Data:      *session,
		ExpiresAt: time.Now().Add(ttl),
	}
	m.logger.WithField("session_id", session.ID).Debug("Session stored in memory")
	return nil
}

// GetSession retrieves a session from memory.
func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.sessions[sessionID]
	if !exists || item.isExpired(time.Now()) {
		return nil, ErrCacheMiss
	}

	session := item.Data
	return &session, nil
}

// DeleteSession removes a session from memory.
func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

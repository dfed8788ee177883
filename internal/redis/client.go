// Package redis stores the manager application's shared state: cached access
// tokens per client registration and principal, and the sessions the login flow
// creates. Client keeps them in Redis so several manager replicas share one
// cache; MemoryStore keeps them in process for local development.
//
// The Redis keys are organized with prefixes to avoid collisions:
//   - selmag:credential:{registration}:{principal} - cached access tokens
//   - selmag:session:{id} - manager sessions with TTL
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/config"
	"github.com/jsamuelsen11/selmag/internal/models"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

const keyPrefix = "selmag:"

// ErrCacheMiss is returned when a key does not exist in the cache.
// This is a sentinel error that callers can check to distinguish between
// a cache miss (expected) and an actual error (unexpected).
var ErrCacheMiss = errors.New("cache miss")

// Store defines the storage operations shared by Client and MemoryStore.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Close releases the store's resources.
	Close() error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// StoreCredential saves a cached credential for ttl.
	StoreCredential(ctx context.Context, cred *models.CachedCredential, ttl time.Duration) error

	// GetCredential returns the credential for a registration and principal,
	// or ErrCacheMiss.
	GetCredential(ctx context.Context, registrationID, principalKey string) (*models.CachedCredential, error)

	// DeleteCredential drops a cached credential. Missing entries are not an error.
	DeleteCredential(ctx context.Context, registrationID, principalKey string) error

	// StoreSession saves a session for ttl.
	StoreSession(ctx context.Context, session *models.Session, ttl time.Duration) error

	// GetSession returns a session by ID, or ErrCacheMiss.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// DeleteSession removes a session. Missing sessions are not an error.
	DeleteSession(ctx context.Context, sessionID string) error
}

// Client is a Redis-backed Store.
//
// Thread Safety: All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

// NewClient creates a Redis client from cfg and verifies connectivity.
func NewClient(cfg *config.RedisConfig, log *logrus.Logger) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password // pragma: allowlist secret
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConn
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolTimeout = cfg.PoolTimeout
	opts.ConnMaxIdleTime = cfg.IdleTimeout

	client := NewClientFromRedis(redis.NewClient(opts), log)

	if pingErr := client.Ping(context.Background()); pingErr != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", pingErr)
	}

	log.Info("Connected to Redis successfully")

	return client, nil
}

// NewClientFromRedis wraps an existing go-redis client.
func NewClientFromRedis(rdb *redis.Client, log *logrus.Logger) *Client {
	return &Client{rdb: rdb, logger: log}
}

// Close gracefully shuts down the Redis client and closes all connections in the pool.
func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		c.logger.WithError(err).Error("Failed to close Redis connection")
		return err
	}
	c.logger.Info("Redis connection closed")
	return nil
}

// Ping tests connectivity to the Redis server by sending a PING command.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// GetRedisClient returns the underlying go-redis client for rate limiting with redis_rate.
func (c *Client) GetRedisClient() *redis.Client {
	return c.rdb
}

// StoreCredential persists a cached credential under
// "selmag:credential:{registration}:{principal}". A non-positive ttl stores
// nothing since the token is already unusable.
func (c *Client) StoreCredential(ctx context.Context, cred *models.CachedCredential, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	key := credentialKey(cred.RegistrationID, cred.PrincipalKey)
	if setErr := c.rdb.Set(ctx, key, data, ttl).Err(); setErr != nil {
		return fmt.Errorf("failed to store credential: %w", setErr)
	}

	c.logger.WithFields(logrus.Fields{
		"registration_id": cred.RegistrationID,
		"principal":       cred.PrincipalKey,
		"access_token":    logger.MaskToken(cred.AccessToken),
		"ttl":             ttl.String(),
	}).Debug("Credential stored successfully")
	return nil
}

// GetCredential retrieves a cached credential.
func (c *Client) GetCredential(ctx context.Context, registrationID, principalKey string) (*models.CachedCredential, error) {
	data, err := c.rdb.Get(ctx, credentialKey(registrationID, principalKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	var cred models.CachedCredential
	if unmarshalErr := json.Unmarshal(data, &cred); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", unmarshalErr)
	}

	return &cred, nil
}

// DeleteCredential removes a cached credential.
func (c *Client) DeleteCredential(ctx context.Context, registrationID, principalKey string) error {
	if err := c.rdb.Del(ctx, credentialKey(registrationID, principalKey)).Err(); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"registration_id": registrationID,
		"principal":       principalKey,
	}).Debug("Credential deleted successfully")
	return nil
}

// StoreSession persists a session with automatic expiration.
func (c *Client) StoreSession(ctx context.Context, session *models.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if setErr := c.rdb.Set(ctx, sessionKey(session.ID), data, ttl).Err(); setErr != nil {
		return fmt.Errorf("failed to store session: %w", setErr)
	}

	c.logger.WithField("session_id", session.ID).Debug("Session stored successfully")
	return nil
}

// GetSession retrieves a session by ID.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	data, err := c.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if unmarshalErr := json.Unmarshal(data, &session); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", unmarshalErr)
	}

	return &session, nil
}

// DeleteSession removes a session from Redis immediately.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	c.logger.WithField("session_id", sessionID).Debug("Session deleted successfully")
	return nil
}

func credentialKey(registrationID, principalKey string) string {
	return keyPrefix + "credential:" + registrationID + ":" + principalKey
}

func sessionKey(sessionID string) string {
	return keyPrefix + "session:" + sessionID
}

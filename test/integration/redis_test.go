package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/jsamuelsen11/selmag/internal/config"
	"github.com/jsamuelsen11/selmag/internal/models"
	redisClient "github.com/jsamuelsen11/selmag/internal/redis"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

const testRegistration = "keycloak"

func TestRedisIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	ctx := context.Background()

	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)

	defer func() {
		if err = redisContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}()

	connectionString, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.RedisConfig{
		URL:          connectionString,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConn:  5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  300 * time.Second,
	}

	log := logger.New("info", "json", "stdout")
	store, err := redisClient.NewClient(cfg, log)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(ctx))

	t.Run("CredentialOperations", func(t *testing.T) {
		testCredentialOperations(ctx, t, store)
	})

	t.Run("CredentialExpiry", func(t *testing.T) {
		testCredentialExpiry(ctx, t, store)
	})

	t.Run("SessionOperations", func(t *testing.T) {
		testSessionOperations(ctx, t, store)
	})
}

func testCredentialOperations(ctx context.Context, t *testing.T, store redisClient.Store) {
	cred := &models.CachedCredential{
		RegistrationID: testRegistration,
		PrincipalKey:   "j.dewar",
		AccessToken:    "access-token-value",
		TokenType:      models.TokenTypeBearer,
		RefreshToken:   "rotated-refresh-token",
		Expiry:         time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}

	require.NoError(t, store.StoreCredential(ctx, cred, time.Hour))

	got, err := store.GetCredential(ctx, testRegistration, "j.dewar")
	require.NoError(t, err)
	assert.Equal(t, cred.AccessToken, got.AccessToken)
	assert.Equal(t, cred.RefreshToken, got.RefreshToken)
	assert.True(t, cred.Expiry.Equal(got.Expiry))

	require.NoError(t, store.DeleteCredential(ctx, testRegistration, "j.dewar"))

	_, err = store.GetCredential(ctx, testRegistration, "j.dewar")
	assert.ErrorIs(t, err, redisClient.ErrCacheMiss)
}

func testCredentialExpiry(ctx context.Context, t *testing.T, store redisClient.Store) {
	cred := &models.CachedCredential{
		RegistrationID: testRegistration,
		PrincipalKey:   "short-lived",
		AccessToken:    "short-lived-token",
		Expiry:         time.Now().Add(time.Second),
	}

	require.NoError(t, store.StoreCredential(ctx, cred, time.Second))

	time.Sleep(2 * time.Second)

	_, err := store.GetCredential(ctx, testRegistration, "short-lived")
	assert.ErrorIs(t, err, redisClient.ErrCacheMiss)
}

func testSessionOperations(ctx context.Context, t *testing.T, store redisClient.Store) {
	principal := models.Principal{
		Subject:     "j.dewar",
		Authorities: []string{"ROLE_MANAGER"},
		Grant:       models.Grant{RefreshToken: "offline-refresh-token", IssuedAt: time.Now().UTC()},
	}
	session := models.NewSession(principal, time.Hour)

	require.NoError(t, store.StoreSession(ctx, session, time.Hour))

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, principal.Subject, got.Principal.Subject)
	assert.Equal(t, principal.Grant.RefreshToken, got.Principal.Grant.RefreshToken)

	require.NoError(t, store.DeleteSession(ctx, session.ID))

	_, err = store.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, redisClient.ErrCacheMiss)
}

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/jsamuelsen11/selmag/internal/models"
	"github.com/jsamuelsen11/selmag/internal/redis"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

const (
	// DefaultClockSkew is subtracted from a token's expiry before it is reused.
	DefaultClockSkew = time.Minute

	// DefaultTokenLifetime applies when the token endpoint omits expires_in.
	DefaultTokenLifetime = 5 * time.Minute

	// AnonymousPrincipal keys credentials obtained without a signed-in caller.
	AnonymousPrincipal = "anonymousUser"

	// Reasons reported in AuthorizationError when the token endpoint gave none.
	ReasonUnknownRegistration = "unknown_registration"
	ReasonNoGrant             = "no_grant"
	ReasonUnsupportedGrant    = "unsupported_grant_type"
	ReasonTokenEndpoint       = "token_endpoint_error"

	// errorCodeInvalidGrant is the token endpoint's answer to a revoked or
	// expired refresh token.
	errorCodeInvalidGrant = "invalid_grant"
)

// CredentialProvider produces bearer tokens for a registration and principal.
type CredentialProvider interface {
	// Authorize returns a usable access token, exchanging a new one when the
	// cached token is missing or expired. Failures are *models.AuthorizationError.
	Authorize(ctx context.Context, registrationID string, principal models.Principal) (string, error)
	// Invalidate forces the next Authorize for the same key to exchange a new token.
	Invalidate(ctx context.Context, registrationID string, principal models.Principal) error
}

// TokenInvalidator is implemented by providers that can drop a cached token
// only while it is still the one a remote rejected.
type TokenInvalidator interface {
	InvalidateToken(ctx context.Context, registrationID string, principal models.Principal, rejected string) error
}

// OAuth2CredentialProvider is the CredentialProvider backed by an OAuth2 token
// endpoint per registration. Tokens are cached in a redis.Store keyed by
// (registration ID, principal subject) and exchanges for the same key are
// collapsed into one in-flight request.
type OAuth2CredentialProvider struct {
	registry   *Registry
	store      redis.Store
	httpClient *http.Client
	skew       time.Duration
	retention  time.Duration
	now        func() time.Time
	metrics    *Metrics
	logger     *logrus.Logger
	group      singleflight.Group
}

// ProviderOption configures an OAuth2CredentialProvider.
type ProviderOption func(*OAuth2CredentialProvider)

// WithClockSkew sets how long before expiry a cached token stops being reused.
func WithClockSkew(skew time.Duration) ProviderOption {
	return func(p *OAuth2CredentialProvider) { p.skew = skew }
}

// WithTokenHTTPClient sets the client used to call token endpoints.
func WithTokenHTTPClient(c *http.Client) ProviderOption {
	return func(p *OAuth2CredentialProvider) { p.httpClient = c }
}

// WithRefreshRetention sets how long a rotated refresh token is kept after the
// access token it came with has expired.
func WithRefreshRetention(d time.Duration) ProviderOption {
	return func(p *OAuth2CredentialProvider) { p.retention = d }
}

// WithMetrics records token exchanges.
func WithMetrics(m *Metrics) ProviderOption {
	return func(p *OAuth2CredentialProvider) { p.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *OAuth2CredentialProvider) { p.now = now }
}

// NewCredentialProvider creates a provider for the registrations in registry.
func NewCredentialProvider(
	registry *Registry,
	store redis.Store,
	logger *logrus.Logger,
	opts ...ProviderOption,
) *OAuth2CredentialProvider {
	const defaultTimeoutSeconds = 10
	p := &OAuth2CredentialProvider{
		registry:   registry,
		store:      store,
		httpClient: &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		skew:       DefaultClockSkew,
		retention:  models.DefaultSessionExpiry,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authorize returns a bearer token for registrationID and principal.
func (p *OAuth2CredentialProvider) Authorize(
	ctx context.Context,
	registrationID string,
	principal models.Principal,
) (string, error) {
	key := principalKey(principal)

	reg, ok := p.registry.Get(registrationID)
	if !ok {
		return "", &models.AuthorizationError{
			RegistrationID: registrationID,
			Principal:      key,
			Reason:         ReasonUnknownRegistration,
		}
	}

	cached := p.lookup(ctx, registrationID, key)
	if cached.UsableAt(p.now(), p.skew) {
		return cached.AccessToken, nil
	}

	// The exchange outlives a cancelled caller so that other waiters on the
	// same key still get its result.
	flightCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(flightKey(registrationID, key), func() (any, error) {
		return p.refresh(flightCtx, reg, principal, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("authorize %s: %w", registrationID, ctx.Err())
	}
}

// Invalidate drops the cached access token for registrationID and principal.
// A rotated refresh token is kept so the next exchange can still use it.
func (p *OAuth2CredentialProvider) Invalidate(
	ctx context.Context,
	registrationID string,
	principal models.Principal,
) error {
	key := principalKey(principal)
	p.group.Forget(flightKey(registrationID, key))

	cached := p.lookup(ctx, registrationID, key)
	if cached == nil || cached.RefreshToken == "" {
		if err := p.store.DeleteCredential(ctx, registrationID, key); err != nil {
			return fmt.Errorf("failed to invalidate credential: %w", err)
		}
	} else {
		stripped := &models.CachedCredential{
			RegistrationID: registrationID,
			PrincipalKey:   key,
			RefreshToken:   cached.RefreshToken,
			Expiry:         p.now(),
		}
		if err := p.store.StoreCredential(ctx, stripped, p.retention); err != nil {
			return fmt.Errorf("failed to invalidate credential: %w", err)
		}
	}

	p.logger.WithFields(logrus.Fields{
		"registration_id": registrationID,
		"principal":       key,
	}).Debug("Credential invalidated, will refresh on next request")
	return nil
}

// InvalidateToken invalidates the cached credential when its access token is
// rejected. A token that has already been replaced is left alone.
func (p *OAuth2CredentialProvider) InvalidateToken(
	ctx context.Context,
	registrationID string,
	principal models.Principal,
	rejected string,
) error {
	cached := p.lookup(ctx, registrationID, principalKey(principal))
	if cached != nil && cached.AccessToken != "" && cached.AccessToken != rejected {
		p.logger.WithFields(logrus.Fields{
			"registration_id": registrationID,
			"principal":       principalKey(principal),
		}).Debug("Rejected token already replaced, keeping cached credential")
		return nil
	}
	return p.Invalidate(ctx, registrationID, principal)
}

// lookup reads the cache. Store failures are logged and treated as misses.
func (p *OAuth2CredentialProvider) lookup(ctx context.Context, registrationID, key string) *models.CachedCredential {
	cached, err := p.store.GetCredential(ctx, registrationID, key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"registration_id": registrationID,
				"principal":       key,
			}).Warn("Failed to read credential cache")
		}
		return nil
	}
	return cached
}

// refresh runs inside the single flight for one key.
func (p *OAuth2CredentialProvider) refresh(
	ctx context.Context,
	reg models.ClientRegistration,
	principal models.Principal,
	key string,
) (string, error) {
	// Another flight may have stored a token after our caller's lookup.
	cached := p.lookup(ctx, reg.RegistrationID, key)
	if cached.UsableAt(p.now(), p.skew) {
		return cached.AccessToken, nil
	}

	if reg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, reg.Timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	p.logger.WithFields(logrus.Fields{
		"registration_id": reg.RegistrationID,
		"principal":       key,
		"grant_type":      reg.GrantType,
		"token_url":       reg.TokenURL,
	}).Debug("Refreshing access token")

	token, err := p.exchange(ctx, reg, principal, cached)
	if err != nil && isRevokedRefreshToken(reg, cached, err) {
		p.logger.WithFields(logrus.Fields{
			"registration_id": reg.RegistrationID,
			"principal":       key,
		}).Info("Cached refresh token was rejected, dropping it")
		if delErr := p.store.DeleteCredential(ctx, reg.RegistrationID, key); delErr != nil {
			p.logger.WithError(delErr).WithField("registration_id", reg.RegistrationID).
				Warn("Failed to drop rejected refresh token")
		}
		rejected := cached.RefreshToken
		cached = nil
		if grant := principal.Grant.RefreshToken; grant != "" && grant != rejected {
			p.metrics.ObserveRefresh(reg.RegistrationID, "failure")
			token, err = p.exchange(ctx, reg, principal, nil)
		}
	}
	if err != nil {
		p.metrics.ObserveRefresh(reg.RegistrationID, "failure")
		authErr := toAuthorizationError(reg.RegistrationID, key, err)
		p.logger.WithFields(logrus.Fields{
			"registration_id": reg.RegistrationID,
			"principal":       key,
			"reason":          authErr.Reason,
		}).WithError(err).Warn("Access token refresh failed")
		return "", authErr
	}
	p.metrics.ObserveRefresh(reg.RegistrationID, "success")

	now := p.now()
	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = now.Add(DefaultTokenLifetime)
	}

	refreshToken := token.RefreshToken
	if refreshToken == "" && cached != nil {
		refreshToken = cached.RefreshToken
	}

	cred := &models.CachedCredential{
		RegistrationID: reg.RegistrationID,
		PrincipalKey:   key,
		AccessToken:    token.AccessToken,
		TokenType:      models.TokenTypeBearer,
		RefreshToken:   refreshToken,
		Expiry:         expiry,
	}

	ttl := cred.TTL(now)
	if refreshToken != "" && ttl < p.retention {
		ttl = p.retention
	}
	if storeErr := p.store.StoreCredential(ctx, cred, ttl); storeErr != nil {
		p.logger.WithError(storeErr).WithField("registration_id", reg.RegistrationID).
			Warn("Failed to cache access token")
	}

	p.logger.WithFields(logrus.Fields{
		"registration_id": reg.RegistrationID,
		"principal":       key,
		"access_token":    logger.MaskToken(token.AccessToken),
		"expires_at":      expiry,
	}).Debug("Access token refreshed successfully")

	return token.AccessToken, nil
}

// exchange calls the registration's token endpoint with its grant type.
func (p *OAuth2CredentialProvider) exchange(
	ctx context.Context,
	reg models.ClientRegistration,
	principal models.Principal,
	cached *models.CachedCredential,
) (*oauth2.Token, error) {
	switch reg.GrantType {
	case models.GrantTypeClientCredentials:
		conf := clientcredentials.Config{
			ClientID:     reg.ClientID,
			ClientSecret: reg.ClientSecret,
			TokenURL:     reg.TokenURL,
			Scopes:       reg.Scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		return conf.Token(ctx)

	case models.GrantTypeRefreshToken:
		refreshToken := principal.Grant.RefreshToken
		if cached != nil && cached.RefreshToken != "" {
			refreshToken = cached.RefreshToken
		}
		if refreshToken == "" {
			return nil, errNoGrant
		}

		conf := oauth2.Config{
			ClientID:     reg.ClientID,
			ClientSecret: reg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  reg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			Scopes: reg.Scopes,
		}
		return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()

	default:
		return nil, errUnsupportedGrant
	}
}

var (
	errNoGrant          = errors.New("principal holds no grant for this registration")
	errUnsupportedGrant = errors.New("registration grant type is not supported")
)

// isRevokedRefreshToken reports whether err is the token endpoint refusing the
// refresh token held in cached.
func isRevokedRefreshToken(reg models.ClientRegistration, cached *models.CachedCredential, err error) bool {
	if reg.GrantType != models.GrantTypeRefreshToken || cached == nil || cached.RefreshToken == "" {
		return false
	}
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == errorCodeInvalidGrant
}

func toAuthorizationError(registrationID, key string, err error) *models.AuthorizationError {
	authErr := &models.AuthorizationError{
		RegistrationID: registrationID,
		Principal:      key,
		Reason:         ReasonTokenEndpoint,
		Err:            err,
	}

	var retrieveErr *oauth2.RetrieveError
	switch {
	case errors.Is(err, errNoGrant):
		authErr.Reason = ReasonNoGrant
	case errors.Is(err, errUnsupportedGrant):
		authErr.Reason = ReasonUnsupportedGrant
	case errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "":
		authErr.Reason = retrieveErr.ErrorCode
	}

	return authErr
}

func principalKey(principal models.Principal) string {
	if principal.Subject == "" {
		return AnonymousPrincipal
	}
	return principal.Subject
}

func flightKey(registrationID, key string) string {
	return registrationID + "\x00" + key
}

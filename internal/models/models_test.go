package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jsamuelsen11/selmag/internal/models"
)

func TestCachedCredentialUsableAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cred *models.CachedCredential
		skew time.Duration
		want bool
	}{
		{name: "nil", cred: nil, want: false},
		{name: "empty_token", cred: &models.CachedCredential{Expiry: now.Add(time.Hour)}, want: false},
		{name: "fresh", cred: &models.CachedCredential{AccessToken: "t", Expiry: now.Add(time.Hour)}, skew: time.Minute, want: true},
		{name: "exactly_at_expiry", cred: &models.CachedCredential{AccessToken: "t", Expiry: now}, want: false},
		{name: "past_expiry", cred: &models.CachedCredential{AccessToken: "t", Expiry: now.Add(-time.Second)}, want: false},
		{name: "inside_skew", cred: &models.CachedCredential{AccessToken: "t", Expiry: now.Add(30 * time.Second)}, skew: time.Minute, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cred.UsableAt(now, tt.skew))
		})
	}
}

func TestAuthoritiesFromGroups(t *testing.T) {
	got := models.AuthoritiesFromGroups([]string{"ROLE_MANAGER", "offline_access", "ROLE_USER", "default-roles"})
	assert.Equal(t, []string{"ROLE_MANAGER", "ROLE_USER"}, got)
}

func TestPrincipalHasAuthority(t *testing.T) {
	p := models.Principal{Subject: "j.dewar", Authorities: []string{"ROLE_MANAGER"}}
	assert.True(t, p.HasAuthority("ROLE_MANAGER"))
	assert.False(t, p.HasAuthority("ROLE_ADMIN"))
}

func TestNewSession(t *testing.T) {
	s := models.NewSession(models.Principal{Subject: "j.dewar"}, 0)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "j.dewar", s.Principal.Subject)
	assert.WithinDuration(t, s.CreatedAt.Add(models.DefaultSessionExpiry), s.ExpiresAt, time.Second)
	assert.False(t, s.IsExpired())

	s.ExpiresAt = time.Now().Add(-time.Second)
	assert.True(t, s.IsExpired())
}

func TestProductIsPersisted(t *testing.T) {
	assert.False(t, models.Product{Title: "Milk"}.IsPersisted())
	assert.True(t, models.Product{ID: 3, Title: "Milk"}.IsPersisted())
}

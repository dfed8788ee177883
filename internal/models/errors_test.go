package models_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/selmag/internal/models"
)

func TestBadRequestErrorKeepsOrder(t *testing.T) {
	messages := []string{"title must not be blank", "details too long"}
	err := models.NewBadRequestError(messages)

	messages[0] = "mutated"

	assert.Equal(t, []string{"title must not be blank", "details too long"}, err.Errors)
	assert.Equal(t, "bad request: title must not be blank; details too long", err.Error())
}

func TestTransportErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *models.TransportError
		want string
	}{
		{
			name: "status_only",
			err:  &models.TransportError{Op: "find product", StatusCode: http.StatusInternalServerError},
			want: "find product: unexpected status 500",
		},
		{
			name: "network_failure",
			err:  &models.TransportError{Op: "find product", Err: context.DeadlineExceeded},
			want: "find product: context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := &models.TransportError{Op: "list products", Err: context.DeadlineExceeded}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassify(t *testing.T) {
	authErr := &models.AuthorizationError{RegistrationID: "keycloak", Principal: "j.dewar", Reason: "invalid_grant"}

	tests := []struct {
		name string
		err  error
		want models.ErrorKind
	}{
		{name: "nil", err: nil, want: models.KindOK},
		{name: "bad_request", err: models.NewBadRequestError([]string{"x"}), want: models.KindValidationRejected},
		{name: "wrapped_bad_request", err: fmt.Errorf("create: %w", models.NewBadRequestError(nil)), want: models.KindValidationRejected},
		{name: "not_found", err: models.ErrNotFound, want: models.KindNotFound},
		{name: "wrapped_not_found", err: fmt.Errorf("delete: %w", models.ErrNotFound), want: models.KindNotFound},
		{name: "authorization", err: authErr, want: models.KindAuthorization},
		{
			name: "authorization_through_url_error",
			err:  &url.Error{Op: "Get", URL: "http://catalogue", Err: authErr},
			want: models.KindAuthorization,
		},
		{name: "transport", err: &models.TransportError{Op: "x", StatusCode: 503}, want: models.KindTransport},
		{name: "unknown", err: errors.New("boom"), want: models.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.Classify(tt.err))
		})
	}
}

func TestAuthorizationErrorError(t *testing.T) {
	err := &models.AuthorizationError{
		RegistrationID: "keycloak",
		Principal:      "j.dewar",
		Reason:         "invalid_grant",
		Err:            errors.New("token revoked"),
	}

	assert.Equal(t,
		`authorization failed for registration "keycloak" and principal "j.dewar": invalid_grant: token revoked`,
		err.Error())
}

func TestProblemConstructors(t *testing.T) {
	bad := models.NewBadRequestProblem("/catalogue-api/products", []string{"a", "b"})
	require.NotNil(t, bad)
	assert.Equal(t, http.StatusBadRequest, bad.Status)
	assert.Equal(t, "Bad Request", bad.Title)
	assert.Equal(t, "The request contains errors", bad.Detail)
	assert.Equal(t, []string{"a", "b"}, bad.Errors)

	missing := models.NewNotFoundProblem("/catalogue-api/products/7", "Product not found")
	assert.Equal(t, http.StatusNotFound, missing.Status)
	assert.Equal(t, "Not Found", missing.Title)
	assert.Empty(t, missing.Errors)
}

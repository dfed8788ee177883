// Package client provides the HTTP plumbing the manager application uses to call
// downstream APIs on behalf of a principal: a JSON base client, a credential
// provider that obtains and caches OAuth2 access tokens per client registration
// and principal, and a RoundTripper that attaches those tokens to every request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/constants"
	"github.com/jsamuelsen11/selmag/internal/models"
)

const (
	// maxProblemBodyBytes bounds how much of an error body is read.
	maxProblemBodyBytes = 64 << 10

	// UserAgent identifies selmag clients to downstream services.
	UserAgent = "selmag-client/1.0"
)

// BaseClient provides core HTTP client functionality for calling downstream services.
// It handles request/response marshaling, problem decoding, and logging.
// Authentication is the transport's concern.
type BaseClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Logger
}

// NewBaseClient creates a new BaseClient for HTTP operations.
//
// Parameters:
//   - baseURL: Base URL for the service (e.g., "http://localhost:8081")
//   - httpClient: HTTP client whose transport and timeout are used for every call
//   - logger: Structured logger for HTTP operations
func NewBaseClient(
	baseURL string,
	httpClient *http.Client,
	logger *logrus.Logger,
) *BaseClient {
	return &BaseClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Do executes an HTTP request with JSON marshaling.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - method: HTTP method (GET, POST, PATCH, DELETE, etc.)
//   - path: Path relative to baseURL, query string included
//   - body: Request body to be JSON-encoded (nil for GET requests)
//
// Returns the HTTP response. Caller is responsible for closing response body.
// Errors from the transport are returned as the *url.Error http.Client produces.
func (c *BaseClient) Do(
	ctx context.Context,
	method string,
	path string,
	body any,
) (*http.Response, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	if body != nil {
		req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}
	req.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON+", "+constants.ContentTypeProblemJSON)
	req.Header.Set(constants.HeaderUserAgent, UserAgent)

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    url,
	}).Debug("Sending HTTP request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"method": method,
			"url":    url,
			"error":  err,
		}).Error("HTTP request failed")
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    url,
		"status": resp.StatusCode,
	}).Debug("Received HTTP response")

	return resp, nil
}

// BaseURL returns the configured base URL for this client.
func (c *BaseClient) BaseURL() string {
	return c.baseURL
}

// Logger returns the client's logger.
func (c *BaseClient) Logger() *logrus.Logger {
	return c.logger
}

// DecodeJSON decodes a success body into v and closes it.
func (c *BaseClient) DecodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// ParseProblem decodes an RFC 7807 error body and closes it.
func (c *BaseClient) ParseProblem(resp *http.Response) (*models.ProblemDetail, error) {
	defer resp.Body.Close()

	var problem models.ProblemDetail
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProblemBodyBytes)).Decode(&problem); err != nil {
		return nil, fmt.Errorf("HTTP %d: failed to parse problem response: %w", resp.StatusCode, err)
	}

	if problem.Status == 0 {
		problem.Status = resp.StatusCode
	}
	return &problem, nil
}

// Discard drains and closes a response body so the connection can be reused.
func Discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProblemBodyBytes))
	_ = resp.Body.Close()
}

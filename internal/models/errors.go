package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ProblemDetail is an RFC 7807 error body extended with a flat list of
// validation messages.
type ProblemDetail struct {
	// Type is a URI reference identifying the problem type.
	Type string `json:"type,omitempty"`
	// Title is a short summary of the problem type.
	Title string `json:"title,omitempty"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// Detail explains this occurrence of the problem.
	Detail string `json:"detail,omitempty"`
	// Instance identifies the request that failed.
	Instance string `json:"instance,omitempty"`
	// Errors holds validation messages in the order they were produced.
	Errors []string `json:"errors,omitempty"`
}

// NewBadRequestProblem builds the 400 body for a rejected write.
func NewBadRequestProblem(instance string, messages []string) *ProblemDetail {
	return &ProblemDetail{
		Type:     "about:blank",
		Title:    http.StatusText(http.StatusBadRequest),
		Status:   http.StatusBadRequest,
		Detail:   "The request contains errors",
		Instance: instance,
		Errors:   messages,
	}
}

// NewNotFoundProblem builds the 404 body for a missing resource.
func NewNotFoundProblem(instance, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:     "about:blank",
		Title:    http.StatusText(http.StatusNotFound),
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: instance,
	}
}

// NewProblem builds a body without validation messages for any other status.
func NewProblem(status int, instance, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

// ErrNotFound reports that the remote resource a mutation targeted does not exist.
var ErrNotFound = errors.New("product not found")

// BadRequestError is a write the remote API rejected. Errors keeps the
// server's messages and their order.
type BadRequestError struct {
	Errors []string
}

// NewBadRequestError copies messages into a BadRequestError.
func NewBadRequestError(messages []string) *BadRequestError {
	return &BadRequestError{Errors: append([]string(nil), messages...)}
}

func (e *BadRequestError) Error() string {
	if len(e.Errors) == 0 {
		return "bad request"
	}
	return "bad request: " + strings.Join(e.Errors, "; ")
}

// TransportError is any failure to complete an exchange with the remote API
// that is not a mapped domain condition: network failures, timeouts and
// unexpected statuses. StatusCode is 0 when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthorizationError means no access token could be obtained for a
// registration and principal. The request must not proceed.
type AuthorizationError struct {
	RegistrationID string
	Principal      string
	// Reason is the OAuth2 error code when the token endpoint supplied one.
	Reason string
	Err    error
}

func (e *AuthorizationError) Error() string {
	msg := fmt.Sprintf("authorization failed for registration %q and principal %q", e.RegistrationID, e.Principal)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// ErrorKind is the outcome of a remote call as seen by presentation code.
type ErrorKind int

const (
	KindOK ErrorKind = iota
	KindValidationRejected
	KindNotFound
	KindAuthorization
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindValidationRejected:
		return "validation_rejected"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	default:
		return "transport"
	}
}

// Classify maps err onto the outcome kinds. Unknown errors are transport failures.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindOK
	}

	var badRequest *BadRequestError
	if errors.As(err, &badRequest) {
		return KindValidationRejected
	}

	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}

	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return KindAuthorization
	}

	return KindTransport
}

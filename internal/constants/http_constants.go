// Package constants contains shared HTTP header names and
// common content type strings used across the catalogue service
// and the manager application.
package constants

// Header names commonly used across the application.
const (
	// HeaderAccept is the HTTP "Accept" header name.
	HeaderAccept = "Accept"

	// HeaderAuthorization is the HTTP "Authorization" header name.
	HeaderAuthorization = "Authorization"

	// HeaderContentType is the HTTP "Content-Type" header name.
	HeaderContentType = "Content-Type"

	// HeaderLocation is the HTTP "Location" header name.
	HeaderLocation = "Location"

	// HeaderUserAgent is the HTTP "User-Agent" header name.
	HeaderUserAgent = "User-Agent"

	// HeaderWWWAuthenticate is the HTTP "WWW-Authenticate" header name.
	HeaderWWWAuthenticate = "WWW-Authenticate"

	// HeaderXRequestID is the custom request ID header name.
	HeaderXRequestID = "X-Request-ID"
)

// Common media / content types used in requests and responses.
const (
	// ContentTypeJSON represents "application/json".
	ContentTypeJSON = "application/json"

	// ContentTypeProblemJSON represents "application/problem+json".
	ContentTypeProblemJSON = "application/problem+json"

	// ContentTypeFormURLEncoded represents
	// "application/x-www-form-urlencoded".
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
)

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

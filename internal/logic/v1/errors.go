// Package v1 provides the authentication business logic: the GitHub OAuth
// exchange, the signed session credential, and the login orchestration.
//
// Error Handling:
// This package defines sentinel errors that represent authentication failures.
// These errors should be wrapped with context using fmt.Errorf("%w") when
// returned from business logic methods and mapped to HTTP statuses with
// errors.Is switches in the web layer. Upstream response bodies are carried
// in the wrapping message for logs only and must never reach API responses.
package v1

import "errors"

// Sentinel errors for the OAuth code-for-token exchange. The three cases are
// deliberately distinct: GitHub returns 200 on some failure paths and signals
// the error in-band, so checking the HTTP status alone is not sufficient.
var (
	// ErrTokenHTTP indicates the token endpoint returned a non-200 status.
	ErrTokenHTTP = errors.New("token endpoint returned non-200 status")

	// ErrTokenGitHub indicates the token response body carried an "error"
	// field, regardless of HTTP status.
	ErrTokenGitHub = errors.New("github reported an oauth error")

	// ErrTokenMissing indicates the token response carried no access_token.
	ErrTokenMissing = errors.New("no access token in response")
)

// ErrUserHTTP indicates the user endpoint returned a non-200 status.
var ErrUserHTTP = errors.New("user endpoint returned non-200 status")

// Sentinel errors for session credential verification. The gatekeeper
// collapses all of them into a single 401; the distinction exists for logging.
var (
	// ErrCredentialMalformed indicates the token is not a parseable credential.
	ErrCredentialMalformed = errors.New("credential malformed")

	// ErrSignatureInvalid indicates the credential signature does not verify.
	ErrSignatureInvalid = errors.New("credential signature invalid")

	// ErrCredentialExpired indicates a well-signed credential past its expiry.
	ErrCredentialExpired = errors.New("credential expired")
)

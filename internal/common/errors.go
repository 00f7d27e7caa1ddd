// Package common defines the sentinel errors shared by fieldsync packages.
// Callers should match them with errors.Is; most are wrapped with context on
// the way up.
package common

import "errors"

var (
	// Credential errors.
	ErrTokenNotFound         = errors.New("api token not found")
	ErrTokenDecryptionFailed = errors.New("api token decryption failed")

	// Option label resolution. Both trigger the id fallback and are never
	// surfaced by a sync.
	ErrOptionLookupFailed  = errors.New("option lookup failed")
	ErrResolutionAmbiguous = errors.New("option labels resolved to numeric ids only")

	// Field configuration file.
	ErrConfigNotFound    = errors.New("field configuration not found")
	ErrConfigParse       = errors.New("field configuration parse error")
	ErrConfigWriteFailed = errors.New("field configuration write failed")

	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// Remote API.
	ErrUnavailable = errors.New("api unavailable")
)

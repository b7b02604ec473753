// Package common defines shared constants and sentinel errors used across
// the authd server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// credential errors
	ErrorInvalidCredentials = errors.New("invalid credentials")
	ErrorAccountLocked      = errors.New("account locked")

	// token errors
	ErrorInvalidToken = errors.New("invalid token")
	ErrorTokenExpired = errors.New("token expired")

	// ErrorTokenReuseDetected marks a refresh attempt with an already-rotated
	// token. The whole token family is revoked before this is returned.
	ErrorTokenReuseDetected = errors.New("token reuse detected")

	// reset flow: not-found, consumed and expired deliberately collapse
	// into a single error so callers cannot tell which it was.
	ErrorInvalidOrExpiredToken = errors.New("invalid or expired token")

	ErrorWeakPassword = errors.New("password does not meet policy")

	ErrorInternal = errors.New("internal error")
)

// Package common defines shared constants and sentinel errors used across
// the BugHunt server layers. Callers should use errors.Is to match these
// values; services wrap them with a caller-safe message via fmt.Errorf("%w").
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrValidation      = errors.New("validation error")
	ErrAuthentication  = errors.New("authentication error")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Upload errors.
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrUpload          = errors.New("upload error")
)

package constants

import "errors"

// Session errors.
var (
	ErrNoRefreshToken    = errors.New("no refresh token available, please run 'rentals login' again")
	ErrInvalidJWTFormat  = errors.New("invalid JWT format")
	ErrNoExpirationClaim = errors.New("no expiration claim found")
	ErrNotLoggedIn       = errors.New("not logged in, use 'rentals login' to sign in")
)

// Configuration errors.
var (
	ErrNoAPIEndpoint       = errors.New("no API endpoint configured, use 'rentals config set api <url>' or --api")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
	ErrInvalidOutputFormat = errors.New("invalid output format, expected table, json or yaml")
)

// Validation errors.
var (
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrEmptyPassword      = errors.New("password must not be empty")
	ErrInvalidDate        = errors.New("invalid date, expected YYYY-MM-DD")
	ErrNoLocation         = errors.New("vehicle has no location")
	ErrNothingToUpdate    = errors.New("nothing to update, pass at least one flag")
	ErrNotRegularFile     = errors.New("path is not a regular file")
	ErrCredentialNotFound = errors.New("no stored credential")
)

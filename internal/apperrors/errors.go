package apperrors

import (
	"errors"
)

var (
	// Startup must abort if any configuration error happened
	ErrConfiguration = errors.New("configuration error")

	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is inactive")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Returned on any signature, structure or expiry failure
	ErrInvalidToken = errors.New("invalid token")

	ErrAccountLocked = errors.New("account temporarily locked")
)

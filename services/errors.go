package services

import "errors"

// Shared errors used across services and the HTTP mapping layer.
var (
	// Generic not-found
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rules
	ErrValidationFailed = errors.New("validation failed")
	ErrPasswordTooShort = errors.New("password is too short")
	ErrUsernameInvalid  = errors.New("username must be 3-30 alphanumeric characters")
	ErrEmailInvalid     = errors.New("email address is not valid")
	ErrSelfMatch        = errors.New("a player cannot play against themselves")
	ErrWinnerNotInMatch = errors.New("winner must be one of the two players")
	ErrGameTypeInvalid  = errors.New("game type must be casual, ranked or tournament")
	ErrDurationInvalid  = errors.New("game duration must be a positive number of seconds")
	ErrNotesTooLong     = errors.New("notes must be at most 500 characters")

	// Conflicts
	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrUserUsernameConflict = errors.New("username is already taken")

	// Authentication and authorization
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	// Entity-specific not-found
	ErrUserNotFound  = errors.New("user not found")
	ErrMatchNotFound = errors.New("match not found")

	// The deployment runs without avatar storage configured.
	ErrAvatarStorageUnavailable = errors.New("avatar storage is not configured")

	// The atomic match-creation unit could not complete and was rolled back.
	// Distinct from validation errors so callers can treat it as retryable.
	ErrMatchTransactionFailed = errors.New("match transaction failed")
)

package models

import "errors"

// Sentinel errors shared between the store, the worker and the API layer.
var (
	// ErrListNotFound is returned when a list does not exist or does not
	// belong to the requesting user.
	ErrListNotFound = errors.New("list not found")

	// ErrDuplicateList is returned when a list id is already taken.
	// List ids are unique across all users.
	ErrDuplicateList = errors.New("list id already exists")

	// ErrUserNotFound is returned when a user lookup matches nothing.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser is returned when a login is already taken.
	ErrDuplicateUser = errors.New("login already taken")

	// ErrInvalidCredentials is returned on a failed login or password check.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

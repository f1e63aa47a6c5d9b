package common

import "errors"

var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")

	// ErrNoAccount is returned when an upload is accepted for a user that has
	// no account to attribute transactions to.
	ErrNoAccount = errors.New("no account found, create an account before importing statements")

	// ErrInvalidFile is returned when an uploaded file is missing, not a CSV,
	// or its leading sample fails to parse.
	ErrInvalidFile = errors.New("invalid statement file")
)

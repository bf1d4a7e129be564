package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// Generation bridge errors.
	ErrBusy              = errors.New("generation already in progress")
	ErrInvalidModel      = errors.New("unknown model")
	ErrMissingCredential = errors.New("no api credential configured")
	ErrInvalidCredential = errors.New("api credential rejected")
	ErrQuotaExceeded     = errors.New("quota or permission denied")
)

package domain

import "errors"

// Error kinds shared by the stores, services and handlers. Callers match them
// with errors.Is; the wrapped chain carries the underlying cause.
var (
	ErrInvalidTable    = errors.New("invalid table")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDuplicateRecord = errors.New("record already exists")
	ErrNotFound        = errors.New("not found")
	ErrStorage         = errors.New("storage error")
	ErrImageProcessing = errors.New("image processing error")
	ErrRemote          = errors.New("remote error")
)

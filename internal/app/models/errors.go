package models

import "errors"

// Domain specific errors for authentication and classification.
var (
	ErrNotFound         = errors.New("requested item not found")
	ErrConflict         = errors.New("item already exists or conflict")
	ErrUnauthenticated  = errors.New("authentication required or invalid credentials")
	ErrStoreUnavailable = errors.New("user store unavailable")
	ErrModelUnavailable = errors.New("classification model not loaded")
	ErrPreprocess       = errors.New("image preprocessing failed")
)

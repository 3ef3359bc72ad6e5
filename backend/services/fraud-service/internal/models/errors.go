package models

import "errors"

var (
	// ErrStorage marks failures of the record store. A run hitting it is rolled back.
	ErrStorage = errors.New("storage error")
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
)

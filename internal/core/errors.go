package core

import "errors"

var (
	// ErrValidation indicates malformed or missing caller input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates no config is registered for the client id.
	ErrNotFound = errors.New("config not found")
	// ErrUpstream indicates the order endpoint could not be reached or rejected the call.
	ErrUpstream = errors.New("upstream request failed")
)

package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound        = errors.New("domain: not found")
	ErrTrustAlreadySet = errors.New("domain: trust level already set")
	ErrInvalidTrust    = errors.New("domain: invalid trust level")
)

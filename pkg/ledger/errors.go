package ledger

import "errors"

var (
	ErrUnauthorized       = errors.New("caller does not hold the required role")
	ErrUnknownRole        = errors.New("unknown role")
	ErrLastAdmin          = errors.New("cannot revoke the last admin")
	ErrInvalidPrincipal   = errors.New("principal must not be empty")
	ErrConflict           = errors.New("device already registered")
	ErrInvalidDevice      = errors.New("device id must not be empty")
	ErrUnknownDevice      = errors.New("device is not registered")
	ErrInvalidEventType   = errors.New("event type is outside the known enumeration")
	ErrInvalidDigest      = errors.New("digest must be exactly 32 bytes")
	ErrOutOfRange         = errors.New("index out of range")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyInitialized = errors.New("ledger already initialized")
	ErrNoAdmins           = errors.New("at least one admin is required")
	ErrProofsUnsupported  = errors.New("repository does not produce proofs")
	ErrReplayed           = errors.New("nonce already used by this principal")
)

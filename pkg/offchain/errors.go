package offchain

import (
	"errors"

	"github.com/RyanW02/waterledger/pkg/canonical"
)

var (
	// ErrEncoding is returned when a payload cannot be canonicalized. No record is created.
	ErrEncoding      = canonical.ErrEncoding
	ErrNotFound      = errors.New("record not found")
	ErrStorage       = errors.New("off-chain storage failure")
	ErrLocatorFormat = errors.New("locator does not reference a record")
	ErrDuplicateId   = errors.New("record id already in use")
)

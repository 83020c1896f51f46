package auditapp

import (
	"errors"

	"github.com/RyanW02/waterledger/pkg/ledger"
	"github.com/RyanW02/waterledger/pkg/proof"
	"github.com/RyanW02/waterledger/pkg/types/audit"
)

var errMalformedPayload = errors.New("malformed request payload")

var errorCodes = []struct {
	err  error
	code uint32
}{
	{errMalformedPayload, audit.CodeMalformedRequest},
	{ledger.ErrUnauthorized, audit.CodeUnauthorized},
	{ledger.ErrUnknownRole, audit.CodeUnknownRole},
	{ledger.ErrLastAdmin, audit.CodeLastAdmin},
	{ledger.ErrInvalidPrincipal, audit.CodeMalformedRequest},
	{ledger.ErrConflict, audit.CodeConflict},
	{ledger.ErrInvalidDevice, audit.CodeInvalidDevice},
	{ledger.ErrUnknownDevice, audit.CodeUnknownDevice},
	{ledger.ErrInvalidEventType, audit.CodeInvalidEventType},
	{ledger.ErrInvalidDigest, audit.CodeInvalidDigest},
	{ledger.ErrOutOfRange, audit.CodeOutOfRange},
	{ledger.ErrNotFound, audit.CodeNotFound},
	{proof.ErrTreeUninitialized, audit.CodeTreeUninitialized},
	{ledger.ErrReplayed, audit.CodeReplayedNonce},
}

// CodeForError returns the result code a ledger error is reported with.
func CodeForError(err error) uint32 {
	if err == nil {
		return audit.CodeOk
	}

	for _, mapping := range errorCodes {
		if errors.Is(err, mapping.err) {
			return mapping.code
		}
	}

	return audit.CodeUnknownError
}

// ErrorForCode is the inverse of CodeForError. Codes without a matching ledger error return nil.
func ErrorForCode(code uint32) error {
	// Principals are validated in several places, so the code is shared
	if code == audit.CodeMalformedRequest {
		return nil
	}

	for _, mapping := range errorCodes {
		if mapping.code == code {
			return mapping.err
		}
	}

	return nil
}

package audit

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

// Principal identifies a ledger caller. It is the hex encoded Ed25519 public key of the caller, so a
// signature can be checked against the principal itself.
type Principal string

var ErrInvalidPrincipal = errors.New("principal is not a hex encoded ed25519 public key")

func PrincipalFromKey(key ed25519.PublicKey) Principal {
	return Principal(hex.EncodeToString(key))
}

func (p Principal) String() string {
	return string(p)
}

func (p Principal) Bytes() []byte {
	return []byte(p.String())
}

func (p Principal) PublicKey() (ed25519.PublicKey, error) {
	decoded, err := hex.DecodeString(string(p))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrincipal, err.Error())
	}

	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrincipal, ed25519.PublicKeySize, len(decoded))
	}

	return decoded, nil
}

func (p Principal) Valid() bool {
	_, err := p.PublicKey()
	return err == nil
}

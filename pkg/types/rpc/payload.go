package rpc

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/RyanW02/waterledger/pkg/types/audit"
	"github.com/google/uuid"
)

type RequestType string

type Payload struct {
	Type  RequestType     `json:"type"`  // Payload type name
	Nonce string          `json:"nonce"` // Unique per principal, a used nonce is never accepted again
	Data  json.RawMessage `json:"data"`  // Payload type-specific data
}

// MaxNonceLength bounds the tree key a consumed nonce is stored under.
const MaxNonceLength = 64

type SignedPayload struct {
	Payload   `json:"payload"`
	Principal audit.Principal `json:"principal"` // Who is making the request
	Signature string          `json:"signature"` // Hex-encoded Ed25519 signature of SigningBytes
}

var (
	ErrMissingSignature = errors.New("payload is not signed")
	ErrInvalidNonce     = errors.New("nonce must be between 1 and 64 characters")
)

func wrap(payloadType RequestType, payload any) (Payload, error) {
	marshalled, err := json.Marshal(payload)
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		Type:  payloadType,
		Nonce: uuid.New().String(),
		Data:  marshalled,
	}, nil
}

// SigningBytes is the message a principal signs. It covers the type and the nonce as well as the data, so
// neither can be swapped on a captured payload.
func (p Payload) SigningBytes() ([]byte, error) {
	return json.Marshal(p)
}

func (p Payload) ValidateNonce() error {
	if p.Nonce == "" || len(p.Nonce) > MaxNonceLength {
		return ErrInvalidNonce
	}

	return nil
}

func sign(payload Payload, signer audit.Principal, signerKey ed25519.PrivateKey) (SignedPayload, error) {
	message, err := payload.SigningBytes()
	if err != nil {
		return SignedPayload{}, err
	}

	return SignedPayload{
		Payload:   payload,
		Principal: signer,
		Signature: hex.EncodeToString(ed25519.Sign(signerKey, message)),
	}, nil
}

func (p *SignedPayload) ValidateSignature(publicKey ed25519.PublicKey) (bool, error) {
	if p.Signature == "" {
		return false, ErrMissingSignature
	}

	signature, err := hex.DecodeString(p.Signature)
	if err != nil {
		return false, err
	}

	message, err := p.SigningBytes()
	if err != nil {
		return false, err
	}

	return ed25519.Verify(publicKey, message, signature), nil
}

// Verify checks the signature against the key the principal is derived from.
func (p *SignedPayload) Verify() (bool, error) {
	publicKey, err := p.Principal.PublicKey()
	if err != nil {
		return false, err
	}

	return p.ValidateSignature(publicKey)
}

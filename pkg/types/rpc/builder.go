package rpc

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"

	"github.com/RyanW02/waterledger/pkg/types/audit"
)

type Builder struct {
	requestType RequestType
	data        any

	key ed25519.PrivateKey

	app string
}

var (
	ErrMissingData = errors.New("Data was not called on builder")
	ErrMissingKey  = errors.New("Signed was not called on builder")
)

func NewBuilder() *Builder {
	return &Builder{
		app: audit.AppName,
	}
}

func (b *Builder) Data(requestType RequestType, data any) *Builder {
	b.requestType = requestType
	b.data = data
	return b
}

func (b *Builder) App(app string) *Builder {
	b.app = app
	return b
}

// Signed sets the signing key. The principal is always derived from the key.
func (b *Builder) Signed(key ed25519.PrivateKey) *Builder {
	b.key = key
	return b
}

func (b *Builder) Build() (MuxedRequest, error) {
	if b.data == nil || b.requestType == "" {
		return MuxedRequest{}, ErrMissingData
	}

	if len(b.key) != ed25519.PrivateKeySize {
		return MuxedRequest{}, ErrMissingKey
	}

	wrapped, err := wrap(b.requestType, b.data)
	if err != nil {
		return MuxedRequest{}, err
	}

	principal := audit.PrincipalFromKey(b.key.Public().(ed25519.PublicKey))

	signed, err := sign(wrapped, principal, b.key)
	if err != nil {
		return MuxedRequest{}, err
	}

	inner, err := json.Marshal(signed)
	if err != nil {
		return MuxedRequest{}, err
	}

	return MuxedRequest{
		App:  b.app,
		Data: inner,
	}, nil
}

func (b *Builder) Marshal() ([]byte, error) {
	payload, err := b.Build()
	if err != nil {
		return nil, err
	}

	return json.Marshal(payload)
}

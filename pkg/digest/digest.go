// Package digest implements the content hash used to bind off-chain payloads to ledger events.
package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	Size = sha256.Size

	// Prefix is prepended to the lowercase hex form in every wire and storage context.
	Prefix = "0x"
)

var (
	ErrInvalidLength = errors.New("digest must be exactly 32 bytes")
	ErrInvalidFormat = errors.New("digest must be 0x followed by 64 hex characters")
)

// Digest is a SHA-256 hash. Comparison is exact at the byte level.
type Digest [Size]byte

func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

func FromBytes(b []byte) (Digest, error) {
	if len(b) != Size {
		return Digest{}, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(b))
	}

	return Digest(b), nil
}

// Parse decodes the textual form. The prefix and the hex digits are matched case-insensitively.
func Parse(s string) (Digest, error) {
	if len(s) < len(Prefix) || !strings.EqualFold(s[:len(Prefix)], Prefix) {
		return Digest{}, ErrInvalidFormat
	}

	raw, err := hex.DecodeString(s[len(Prefix):])
	if err != nil {
		return Digest{}, fmt.Errorf("%w: %s", ErrInvalidFormat, err.Error())
	}

	return FromBytes(raw)
}

func (d Digest) String() string {
	return Prefix + hex.EncodeToString(d[:])
}

func (d Digest) Bytes() []byte {
	return d[:]
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) Equal(other Digest) bool {
	return bytes.Equal(d[:], other[:])
}

// EqualString compares against a textual digest, ignoring case.
func (d Digest) EqualString(s string) bool {
	other, err := Parse(s)
	if err != nil {
		return false
	}

	return d.Equal(other)
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}

func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return d.UnmarshalText([]byte(s))
}

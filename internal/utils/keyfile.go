package utils

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// LoadPrivateKey reads a base64 encoded Ed25519 private key.
func LoadPrivateKey(keyFile string) (ed25519.PrivateKey, error) {
	bytes, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, err
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(bytes)))
	if err != nil {
		return nil, err
	}

	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key: expected %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}

	return key, nil
}

func WritePrivateKey(keyFile string, key ed25519.PrivateKey) error {
	return os.WriteFile(keyFile, []byte(base64.StdEncoding.EncodeToString(key)), 0600)
}

package utils

import "crypto/sha256"

func Sha256Sum(bytes ...[]byte) []byte {
	digest := sha256.New()
	for _, b := range bytes {
		digest.Write(b)
	}
	return digest.Sum(nil)
}

package utils

import "encoding/binary"

func Bytes(s string) []byte {
	return []byte(s)
}

func Must[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}

	return value
}

// Uint64ToBytes encodes big-endian, so that byte-wise key ordering matches numeric ordering.
func Uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func BytesToUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}

	return binary.BigEndian.Uint64(b)
}

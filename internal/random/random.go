// Package random generates the short codes used for bearer tokens and
// attendance check-in codes.
package random

import (
	"crypto/rand"
	"math/big"
)

// Codes are drawn from uppercase letters and digits only so students can
// read them off a projector without ambiguity about case.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	// TokenLength is the length of opaque session tokens.
	TokenLength = 12
	// AttendanceCodeLength is the length of attendance check-in codes.
	AttendanceCodeLength = 6
)

// ID returns a random string of n characters from the code alphabet.
func ID(n int) string {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// there is no useful recovery for code generation.
			panic(err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf)
}

// Token returns a new opaque session token.
func Token() string { return ID(TokenLength) }

// AttendanceCode returns a new attendance check-in code.
func AttendanceCode() string { return ID(AttendanceCodeLength) }

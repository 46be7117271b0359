// Package roomcode generates the short codes students type to join a session
// and maps them to transport identities. The mapping is a pure function so
// both sides derive the same identity without talking to each other.
package roomcode

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Alphabet leaves out characters that are easy to misread on a classroom
// projector: 0/O, 1/I.
const (
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	Length   = 5

	identityPrefix = "learnengpol:"
)

// Generate returns a new random room code.
func Generate() (string, error) {
	code := make([]byte, Length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(Alphabet))))
		if err != nil {
			return "", err
		}
		code[i] = Alphabet[n.Int64()]
	}
	return string(code), nil
}

// Identity derives the transport identity a host listens on for the given
// code. Codes are case-normalized so participants can type them either way.
func Identity(code string) string {
	return identityPrefix + Normalize(code)
}

// Normalize upper-cases and trims a user-typed code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code is a well-formed room code after normalization.
func Valid(code string) bool {
	code = Normalize(code)
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(Alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// Package randcode generates short human-typeable codes.
package randcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet is the set of characters codes are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the length of room and pairing codes.
const Length = 6

// New returns a random code of n characters from Alphabet.
func New(n int) (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		buf[i] = Alphabet[idx.Int64()]
	}
	return string(buf), nil
}

// Valid reports whether code has length n and only Alphabet characters.
func Valid(code string, n int) bool {
	if len(code) != n {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

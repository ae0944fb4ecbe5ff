package service

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

const pinLength = 6

var pinSpace = big.NewInt(1_000_000)

// GeneratePIN returns a uniformly distributed 6-digit PIN, leading zeros kept.
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, pinSpace)
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%0*d", pinLength, n.Int64()), nil
}

// ValidPIN reports whether pin is exactly six ASCII digits.
func ValidPIN(pin string) bool {
	if len(pin) != pinLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

func pinEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

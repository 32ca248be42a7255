// Package security implements the password hashing algorithms selectable via
// security.hash_algo.
package security

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Supported algorithm identifiers.
const (
	AlgoSHA256 = "sha256"
	AlgoSHA512 = "sha512"
	AlgoBcrypt = "bcrypt"
)

// SupportedAlgorithms lists every identifier accepted by HashPassword.
var SupportedAlgorithms = []string{AlgoSHA256, AlgoSHA512, AlgoBcrypt}

// IsSupported reports whether algo names a supported hash algorithm.
func IsSupported(algo string) bool {
	for _, a := range SupportedAlgorithms {
		if a == algo {
			return true
		}
	}
	return false
}

// HashPassword hashes plain with the given algorithm. sha256 and sha512 yield
// lowercase hex digests; bcrypt yields the standard modular crypt string.
func HashPassword(algo, plain string) (string, error) {
	switch strings.ToLower(algo) {
	case AlgoSHA256:
		sum := sha256.Sum256([]byte(plain))
		return hex.EncodeToString(sum[:]), nil
	case AlgoSHA512:
		sum := sha512.Sum512([]byte(plain))
		return hex.EncodeToString(sum[:]), nil
	case AlgoBcrypt:
		hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return string(hashed), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

// CheckPassword reports whether plain matches hashed under algo.
func CheckPassword(algo, hashed, plain string) bool {
	if strings.ToLower(algo) == AlgoBcrypt {
		return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
	}
	candidate, err := HashPassword(algo, plain)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(strings.ToLower(hashed))) == 1
}

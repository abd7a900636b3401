// Package auth checks the shared static admin secret.
package auth

import (
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

// AdminVerifier compares secrets against a bcrypt hash.
type AdminVerifier struct {
	hash []byte
}

// NewAdminVerifier returns a verifier for hash. An empty hash rejects everything.
func NewAdminVerifier(hash string) *AdminVerifier {
	return &AdminVerifier{hash: []byte(hash)}
}

// HashSecret returns the bcrypt hash of secret for ADMIN_SECRET_HASH.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (v *AdminVerifier) Verify(secret string) error {
	if len(v.hash) == 0 {
		return apperr.Unauthorizedf("admin access is not configured")
	}
	if secret == "" {
		return apperr.Unauthorizedf("admin secret is required")
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(secret)); err != nil {
		return apperr.Unauthorizedf("invalid admin secret")
	}
	return nil
}

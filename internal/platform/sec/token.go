// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/taibuivan/finsight/pkg/uuid"
)

// GenerateSecureToken returns a URL-safe random opaque token built from
// byteLength bytes of CSPRNG output. Used for refresh tokens, which are
// deliberately NOT self-contained: the server persists only their hash.
func GenerateSecureToken(byteLength int) (string, error) {
	raw := make([]byte, byteLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("sec: failed to generate secure token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken returns the SHA-256 hex digest of an opaque token.
//
// Raw token values never touch persistent storage; lookups and revocations
// operate on this digest only.
func HashToken(rawToken string) string {
	digest := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(digest[:])
}

// NewTokenID generates a unique, time-sortable token identifier (jti).
func NewTokenID() string {
	return uuid.New()
}

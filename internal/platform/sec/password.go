// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing, opaque
// token generation) from the domain logic. It acts as an Infrastructure service
// injected into the Application layer via small interfaces.
package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. These are deployment-wide tuning knobs, never
// per-call input; changing them only affects newly created digests because
// the parameters are embedded in each digest string.
const (
	argonMemory      = 64 * 1024 // KiB
	argonIterations  = 3
	argonParallelism = 2
	argonSaltLength  = 16
	argonKeyLength   = 32
)

// passwordSpecialChars is the recognized special character set for the
// strength policy.
const passwordSpecialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// HashPassword hashes a plain-text password using the memory-hard Argon2id
// algorithm with a fresh random salt.
//
// # Format
//
// The digest is a standard PHC string embedding version, parameters, salt,
// and key, e.g.:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
func HashPassword(plainTextPassword string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plainTextPassword), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(key)

	digest := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism, encodedSalt, encodedKey)

	return digest, nil
}

// CheckPasswordHash compares a plain-text password with its Argon2id digest.
//
// The comparison runs in constant time relative to the digest contents, so the
// outcome cannot be inferred from response timing. The plaintext is never logged.
func CheckPasswordHash(plainTextPassword, encodedDigest string) bool {
	memory, iterations, parallelism, salt, expectedKey, err := decodeDigest(encodedDigest)
	if err != nil {
		return false
	}

	computedKey := argon2.IDKey([]byte(plainTextPassword), salt, iterations, memory, parallelism, uint32(len(expectedKey)))

	return subtle.ConstantTimeCompare(computedKey, expectedKey) == 1
}

// decodeDigest parses a PHC-formatted Argon2id digest into its components.
func decodeDigest(encodedDigest string) (memory uint32, iterations uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(encodedDigest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, fmt.Errorf("sec: malformed digest")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, fmt.Errorf("sec: unsupported argon2 version")
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("sec: malformed digest parameters")
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("sec: malformed digest salt")
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("sec: malformed digest key")
	}

	return memory, iterations, parallelism, salt, key, nil
}

// # Strength Policy

// PasswordPolicy is the configurable set of strength rules applied to new passwords.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPasswordPolicy returns the baseline policy applied when no
// configuration overrides are present.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      8,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// CheckPasswordStrength validates a password against the policy and returns
// EVERY violated rule, so the caller can present all issues at once instead
// of forcing the user through one fix per attempt.
func CheckPasswordStrength(plainTextPassword string, policy PasswordPolicy) []string {
	var issues []string

	if len(plainTextPassword) < policy.MinLength {
		issues = append(issues, fmt.Sprintf("Password must be at least %d characters long", policy.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, character := range plainTextPassword {
		switch {
		case character >= 'A' && character <= 'Z':
			hasUpper = true
		case character >= 'a' && character <= 'z':
			hasLower = true
		case character >= '0' && character <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSpecialChars, character):
			hasSpecial = true
		}
	}

	if policy.RequireUpper && !hasUpper {
		issues = append(issues, "Password must contain at least one uppercase letter")
	}
	if policy.RequireLower && !hasLower {
		issues = append(issues, "Password must contain at least one lowercase letter")
	}
	if policy.RequireDigit && !hasDigit {
		issues = append(issues, "Password must contain at least one digit")
	}
	if policy.RequireSpecial && !hasSpecial {
		issues = append(issues, "Password must contain at least one special character")
	}

	return issues
}

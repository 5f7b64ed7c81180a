// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/finsight/internal/platform/sec"
)

/*
TestHashPassword_RoundTrip tests that a freshly hashed password verifies
against its own digest and nothing else.
*/
func TestHashPassword_RoundTrip(t *testing.T) {
	digest, err := sec.HashPassword("Sup3r$ecret!")
	require.NoError(t, err)
	require.NotEmpty(t, digest)

	assert.True(t, sec.CheckPasswordHash("Sup3r$ecret!", digest))
	assert.False(t, sec.CheckPasswordHash("sup3r$ecret!", digest))
	assert.False(t, sec.CheckPasswordHash("", digest))
}

/*
TestHashPassword_UniqueSalts tests that hashing the same password twice
produces different digests.
*/
func TestHashPassword_UniqueSalts(t *testing.T) {
	first, err := sec.HashPassword("Sup3r$ecret!")
	require.NoError(t, err)

	second, err := sec.HashPassword("Sup3r$ecret!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

/*
TestCheckPasswordHash_MalformedDigest tests that corrupted or foreign digest
formats never verify.
*/
func TestCheckPasswordHash_MalformedDigest(t *testing.T) {
	tests := []struct {
		name   string
		digest string
	}{
		{"empty", ""},
		{"not_phc", "plainsha256digest"},
		{"wrong_algorithm", "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$a2V5"},
		{"truncated", "$argon2id$v=19$m=65536,t=3,p=2"},
		{"bad_salt_encoding", "$argon2id$v=19$m=65536,t=3,p=2$!!!$a2V5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, sec.CheckPasswordHash("Sup3r$ecret!", tt.digest))
		})
	}
}

/*
TestCheckPasswordStrength tests the policy evaluation, including that every
violated rule is reported at once.
*/
func TestCheckPasswordStrength(t *testing.T) {
	policy := sec.DefaultPasswordPolicy()

	tests := []struct {
		name       string
		password   string
		violations int
	}{
		{"strong", "Sup3r$ecret!", 0},
		{"missing_upper", "sup3r$ecret!", 1},
		{"missing_digit", "Super$ecret!", 1},
		{"missing_special", "Sup3rSecret1", 1},
		{"short_and_weak", "abc", 4}, // length, upper, digit, special
		{"empty", "", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := sec.CheckPasswordStrength(tt.password, policy)
			assert.Len(t, issues, tt.violations)
		})
	}
}

/*
TestCheckPasswordStrength_Messages tests that violation messages are
user-presentable and name the configured minimum.
*/
func TestCheckPasswordStrength_Messages(t *testing.T) {
	policy := sec.PasswordPolicy{MinLength: 12, RequireUpper: true}

	issues := sec.CheckPasswordStrength("short", policy)
	require.Len(t, issues, 2)

	assert.Equal(t, fmt.Sprintf("Password must be at least %d characters long", 12), issues[0])
	assert.Equal(t, "Password must contain at least one uppercase letter", issues[1])
}

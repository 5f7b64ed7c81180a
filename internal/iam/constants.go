// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package iam

// # Credential Constraints

const (
	// RefreshTokenLength is the byte length of the random opaque refresh
	// token. 32 bytes gives 256 bits of entropy before encoding.
	RefreshTokenLength = 32

	// UsernameMinLength and UsernameMaxLength bound account handles.
	UsernameMinLength = 3
	UsernameMaxLength = 50

	// DisplayNameMaxLength bounds the optional profile display name.
	DisplayNameMaxLength = 100
)

// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/finsight/internal/platform/apperr"
)

// TokenTypeAccess is the type discriminator embedded in every access token.
// Verification rejects any other value, so a refresh or reset artifact can
// never be replayed as an access credential.
const TokenTypeAccess = "access"

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// # Why custom claims?
//
// By embedding the Username and Roles directly inside the JWT, the gateway can
// reconstruct the caller identity WITHOUT querying the database on every single
// API request. Verification stays a stateless, fast-path operation.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	Username  string   `json:"unm"`
	Roles     []string `json:"rol,omitempty"`
	TokenType string   `json:"typ"`
}

// UserID returns the subject account ID carried by the claims.
func (c *AuthClaims) UserID() string { return c.Subject }

// TokenService handles generation and verification of JWT tokens using
// HMAC-SHA256. The signing secret is deployment configuration, never hardcoded.
type TokenService struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
}

// NewTokenService creates a new TokenService.
func NewTokenService(secret, issuer string, accessTTL time.Duration) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("sec: jwt secret must not be empty")
	}

	return &TokenService{
		secret:    []byte(secret),
		issuer:    issuer,
		accessTTL: accessTTL,
	}, nil
}

// AccessTokenTTL returns the configured access token lifetime.
func (service *TokenService) AccessTokenTTL() time.Duration {
	return service.accessTTL
}

// IssueAccessToken creates a new signed JWT access token for a user.
//
// The token is self-contained: subject ID, username, roles, issued-at, expiry,
// a unique token identifier (jti), and the "access" type discriminator.
func (service *TokenService) IssueAccessToken(userID, username string, roles []string) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        NewTokenID(),
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(service.accessTTL)),
		},
		Username:  username,
		Roles:     roles,
		TokenType: TokenTypeAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyAccessToken checks the signature, expiry, and type of a JWT string.
//
// It never consults the store: access-token verification is the stateless fast
// path of the gateway. Expired tokens and invalid tokens surface as distinct
// [apperr.AppError] codes so callers can decide whether a refresh is worthwhile.
func (service *TokenService) VerifyAccessToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
			}
			return service.secret, nil
		},
		jwt.WithIssuer(service.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.TokenExpired()
		}
		return nil, apperr.TokenInvalid("Invalid token")
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, apperr.TokenInvalid("Invalid token claims")
	}

	if claims.TokenType != TokenTypeAccess {
		return nil, apperr.TokenInvalid("Token is not an access token")
	}

	return claims, nil
}

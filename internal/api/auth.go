// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/hivekeeper/internal/logging"
)

// MinJWTSecretLength is the shortest accepted signing secret.
const MinJWTSecretLength = 32

// Claims are the admin token claims. Subject names the operator.
type Claims struct {
	jwt.RegisteredClaims
}

type claimsKey struct{}

// ClaimsFromContext returns the claims of an authenticated request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// JWTManager issues and validates HS256 admin tokens.
type JWTManager struct {
	secret []byte
}

// NewJWTManager creates a JWTManager. The secret must be at least
// MinJWTSecretLength bytes.
func NewJWTManager(secret string) (*JWTManager, error) {
	if len(secret) < MinJWTSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", MinJWTSecretLength)
	}
	return &JWTManager{secret: []byte(secret)}, nil
}

// GenerateToken signs a token for subject that expires after ttl.
func (m *JWTManager) GenerateToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "hivekeeper",
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature, algorithm and time claims of tokenString.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Authenticate requires "Authorization: Bearer <token>".
func (m *JWTManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			NewResponseWriter(w, r).Unauthorized("bearer token required")
			return
		}
		claims, err := m.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("rejected admin token")
			NewResponseWriter(w, r).Unauthorized("invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

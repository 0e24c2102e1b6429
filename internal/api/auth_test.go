// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewJWTManager_ShortSecret(t *testing.T) {
	t.Parallel()
	if _, err := NewJWTManager("short"); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	t.Parallel()
	m, err := NewJWTManager(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	token, err := m.GenerateToken("alice", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %q", claims.Subject)
	}
}

func TestJWTManager_Rejects(t *testing.T) {
	t.Parallel()
	m, _ := NewJWTManager(testSecret)
	other, _ := NewJWTManager(strings.Repeat("x", 40))

	expired, _ := m.GenerateToken("alice", -time.Minute)
	foreign, _ := other.GenerateToken("alice", time.Minute)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).SignedString([]byte(testSecret))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(testSecret))

	tests := map[string]string{
		"expired":         expired,
		"other secret":    foreign,
		"no expiry":       noExpiry,
		"wrong algorithm": wrongAlg,
		"garbage":         "not.a.token",
	}
	for name, token := range tests {
		if _, err := m.ValidateToken(token); err == nil {
			t.Errorf("%s: token accepted", name)
		}
	}
}

func TestAuthenticateMiddleware(t *testing.T) {
	t.Parallel()
	m, _ := NewJWTManager(testSecret)
	valid, _ := m.GenerateToken("alice", time.Minute)

	var subject string
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		if ok {
			subject = c.Subject
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"basic scheme", "Basic YWxpY2U6cGFzcw==", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
		{"lowercase scheme", "bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, w.Code, tt.want)
		}
		if tt.want == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
			t.Errorf("%s: missing WWW-Authenticate header", tt.name)
		}
	}
	if subject != "alice" {
		t.Errorf("claims subject = %q, want alice", subject)
	}
}

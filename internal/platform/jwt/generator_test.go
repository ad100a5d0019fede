package jwtauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestNewGenerator は各種設定でGeneratorが正しく生成されることを検証します。
func TestNewGenerator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		secret     string
		expiration time.Duration
	}{
		{"standard config", "my-secret-key", time.Hour},
		{"long expiration", "secret", 24 * time.Hour * 30},
		{"short expiration", "s", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen, ok := NewGenerator(tt.secret, tt.expiration).(*generator)
			if !ok {
				t.Fatal("expected *generator")
			}
			if string(gen.secret) != tt.secret {
				t.Errorf("expected secret %q, got %q", tt.secret, string(gen.secret))
			}
			if gen.expiration != tt.expiration {
				t.Errorf("expected expiration %v, got %v", tt.expiration, gen.expiration)
			}
		})
	}
}

// TestGenerator_GenerateToken は生成されたJWTトークンが有効で正しいクレームを含むことを検証します。
func TestGenerator_GenerateToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		subject string
		role    string
	}{
		{"analyst", "deck-cli", "analyst"},
		{"viewer", "deck-web", "viewer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := NewGenerator("test-secret", time.Hour)
			tokenStr, err := gen.GenerateToken(tt.subject, tt.role)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			token, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (interface{}, error) {
				if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
					t.Errorf("unexpected signing method: %v", tok.Header["alg"])
				}
				return []byte("test-secret"), nil
			})
			if err != nil {
				t.Fatalf("failed to parse token: %v", err)
			}
			if !token.Valid {
				t.Fatal("expected token to be valid")
			}

			claims := token.Claims.(jwt.MapClaims)
			if claims["sub"] != tt.subject {
				t.Errorf("expected sub %q, got %v", tt.subject, claims["sub"])
			}
			if claims["role"] != tt.role {
				t.Errorf("expected role %q, got %v", tt.role, claims["role"])
			}
			if _, ok := claims["exp"]; !ok {
				t.Error("expected exp claim to be set")
			}
		})
	}
}

// TestGenerator_GenerateToken_Expiration はexpがiat+有効期間になることを検証します。
func TestGenerator_GenerateToken_Expiration(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	gen := &generator{secret: []byte("s"), expiration: 2 * time.Hour, now: func() time.Time { return fixed }}

	tokenStr, err := gen.GenerateToken("deck-cli", "analyst")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exp, ok := ExpiresAt(tokenStr)
	if !ok {
		t.Fatal("expected exp to be readable")
	}
	if !exp.Equal(fixed.Add(2 * time.Hour)) {
		t.Errorf("expected exp %v, got %v", fixed.Add(2*time.Hour), exp)
	}
}

func TestMintedCredential_Token(t *testing.T) {
	t.Parallel()

	cred := NewMintedCredential(NewGenerator("test-secret", time.Hour), "deck-cli", "analyst")

	tok1, err := cred.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok1 == "" {
		t.Fatal("expected non-empty token")
	}
	if err := CheckExpiry(tok1, time.Now()); err != nil {
		t.Errorf("fresh token reported as expired: %v", err)
	}
}

// Package jwtauth は評価エンドポイントに送るBearerトークンの発行と検査を提供します。
package jwtauth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Generator defines the interface for JWT token generation.
type Generator interface {
	// GenerateToken creates a signed JWT token for the given subject and role.
	GenerateToken(subject, role string) (string, error)
}

// generator implements the Generator interface.
type generator struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewGenerator creates a new JWT generator with the provided secret and expiration duration.
// 評価サービスと共有するHS256シークレットで、開発環境向けのトークンを自前で発行します。
func NewGenerator(secret string, expiration time.Duration) Generator {
	return &generator{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

// GenerateToken creates a signed JWT token with standard claims.
func (g *generator) GenerateToken(subject, role string) (string, error) {
	now := g.now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  now.Add(g.expiration).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// MintedCredential は呼び出しのたびにGeneratorで新しいトークンを発行するCredentialSourceです。
type MintedCredential struct {
	gen     Generator
	subject string
	role    string
}

// NewMintedCredential はMintedCredentialを生成します。
func NewMintedCredential(gen Generator, subject, role string) *MintedCredential {
	return &MintedCredential{gen: gen, subject: subject, role: role}
}

// Token は署名済みトークンを返します。
func (m *MintedCredential) Token(_ context.Context) (string, error) {
	return m.gen.GenerateToken(m.subject, m.role)
}

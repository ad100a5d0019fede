package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired はトークンのexpが過ぎている場合に返されます。
var ErrTokenExpired = errors.New("bearer token has expired")

// ErrNoToken は認証情報が空の場合に返されます。
var ErrNoToken = errors.New("bearer token is empty")

// ExpiresAt はJWTのexpクレームを署名を検証せずに読み取ります。
// JWTでないトークン（不透明トークン）やexpを持たないトークンはokがfalseになります。
func ExpiresAt(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// CheckExpiry は期限切れのJWTを送信前に検出します。署名の検証はサーバー側の責務です。
func CheckExpiry(token string, now time.Time) error {
	exp, ok := ExpiresAt(token)
	if !ok {
		return nil
	}
	if !now.Before(exp) {
		return fmt.Errorf("%w (exp %s)", ErrTokenExpired, exp.UTC().Format(time.RFC3339))
	}
	return nil
}

// StaticCredential は設定済みの固定トークンを返すCredentialSourceです。
type StaticCredential struct {
	token string
	now   func() time.Time
}

// NewStaticCredential はStaticCredentialを生成します。
func NewStaticCredential(token string) *StaticCredential {
	return &StaticCredential{token: strings.TrimSpace(token), now: time.Now}
}

// Token はトークンを返します。JWTで期限切れの場合はErrTokenExpiredを返します。
func (s *StaticCredential) Token(_ context.Context) (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	if err := CheckExpiry(s.token, s.now()); err != nil {
		return "", err
	}
	return s.token, nil
}

package httpapi

import (
	"context"
	"sync"
	"time"

	jwtauth "deck_evaluator/internal/platform/jwt"
)

const (
	// expirySkew は期限直前のトークンを使わないための余裕です。
	expirySkew = 30 * time.Second
	// fallbackTokenLifetime は有効期限が分からないトークンを再利用する期間です。
	fallbackTokenLifetime = time.Hour
)

// LoginCredential はユーザー名とパスワードでログインしてトークンを取得するCredentialSourceです。
// 取得したトークンは期限まで再利用します。
type LoginCredential struct {
	client   *Client
	username string
	password string
	now      func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewLoginCredential はLoginCredentialを生成します。clientは認証情報なしで構成したものを渡します。
func NewLoginCredential(client *Client, username, password string) *LoginCredential {
	return &LoginCredential{client: client, username: username, password: password, now: time.Now}
}

// Token はキャッシュ済みのトークン、または新たにログインして得たトークンを返します。
func (l *LoginCredential) Token(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.token != "" && now.Before(l.expires.Add(-expirySkew)) {
		return l.token, nil
	}

	res, err := l.client.Login(ctx, l.username, l.password)
	if err != nil {
		l.token = ""
		return "", err
	}

	l.token = res.AccessToken
	switch exp, ok := jwtauth.ExpiresAt(res.AccessToken); {
	case res.ExpiresIn > 0:
		l.expires = now.Add(time.Duration(res.ExpiresIn) * time.Second)
	case ok:
		l.expires = exp
	default:
		l.expires = now.Add(fallbackTokenLifetime)
	}
	return l.token, nil
}

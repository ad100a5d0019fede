package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionCookieName はブラウザのセッションIDを保持するCookie名です。
	SessionCookieName = "deck_session"

	sessionIDKey = "deck_session_id"
)

// SessionCookie はブラウザごとのセッションIDをCookieで発行・検証するミドルウェアを返します。
// 不正な値のCookieは新しいIDで置き換えます。
func SessionCookie(secure bool, ttl time.Duration) gin.HandlerFunc {
	maxAge := int(ttl / time.Second)
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
		}
		// 有効期限を延ばすため、毎回Cookieを発行し直す
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookieName, id, maxAge, "/", "", secure, true)
		c.Set(sessionIDKey, id)
		c.Next()
	}
}

// SessionID はミドルウェアが設定したセッションIDを返します。
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

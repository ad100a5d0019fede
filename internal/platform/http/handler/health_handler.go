// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// probeTimeout は上流のヘルスチェックに使う時間の上限です。
const probeTimeout = 3 * time.Second

// UpstreamProber は評価エンドポイントへの到達性を確認するインターフェースです。
type UpstreamProber interface {
	Ping(ctx context.Context) error
}

// HealthHandler は /healthz を処理します。
type HealthHandler struct {
	upstream UpstreamProber
}

// NewHealthHandler はHealthHandlerの新しいインスタンスを生成します。upstreamはnilでも構いません。
func NewHealthHandler(upstream UpstreamProber) *HealthHandler {
	return &HealthHandler{upstream: upstream}
}

// Health はサービスヘルスチェック用の /healthz エンドポイントを処理します。
// 上流に到達できなくてもこのサービス自体は稼働しているため、常に200を返します。
func (h *HealthHandler) Health(c *gin.Context) {
	// 明示的にキャッシュを防止
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
		return
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
		return
	}

	body := gin.H{"status": "ok"}
	if h.upstream != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		defer cancel()
		if err := h.upstream.Ping(ctx); err != nil {
			slog.Warn("評価エンドポイントに到達できません", "error", err)
			body["upstream"] = "unreachable"
		} else {
			body["upstream"] = "reachable"
		}
	}
	c.JSON(http.StatusOK, body)
}

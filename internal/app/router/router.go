// Package router はWebサーバーのルーティングを組み立てます。
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	evalhandler "deck_evaluator/internal/feature/evaluation/transport/handler"
	platformhandler "deck_evaluator/internal/platform/http/handler"
)

// Options はルーターの構成です。
type Options struct {
	CORSOrigins  []string
	SecureCookie bool
	SessionTTL   time.Duration
	// Metrics がnilの場合 /metrics は公開しません。
	Metrics http.Handler
}

func NewRouter(health *platformhandler.HealthHandler, evaluation *evalhandler.EvaluationHandler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	evalhandler.LoadTemplates(r)

	// 導通確認用
	r.GET("/healthz", health.Health)
	r.HEAD("/healthz", health.Health)
	r.OPTIONS("/healthz", health.Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	// ブラウザセッションが必要なルート
	// → Cookieでセッションを識別する
	web := r.Group("/")
	web.Use(evalhandler.SessionCookie(opts.SecureCookie, opts.SessionTTL))
	{
		web.GET("/", evaluation.Index)
		web.POST("/evaluate", evaluation.Evaluate)
		web.GET("/events", evaluation.Events)
		web.GET("/result", evaluation.Result)
		web.POST("/reset", evaluation.Reset)
	}

	return r
}

// corsConfig は許可オリジンからCORS設定を作ります。"*" を含む場合はすべて許可します。
func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Accept")
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

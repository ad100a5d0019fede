package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"deck_evaluator/internal/app/di"
	"deck_evaluator/internal/app/router"
	"deck_evaluator/internal/config"
	evalhandler "deck_evaluator/internal/feature/evaluation/transport/handler"
	platformhandler "deck_evaluator/internal/platform/http/handler"
	"deck_evaluator/internal/platform/logging"
	"deck_evaluator/internal/platform/metrics"
	"deck_evaluator/internal/shared/ratelimiter"
)

// shutdownTimeout は終了時に処理中のリクエストを待つ上限です。
const shutdownTimeout = 10 * time.Second

func main() {
	// 設定
	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		log.Fatal(err)
	}
	if _, err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// セッション状態の保存先（Redis またはメモリ）
	store, closeStore := di.NewSnapshotStore(ctx, cfg)
	defer closeStore()

	// 評価クライアント
	evaluator := di.NewEvaluator(cfg)
	recorder := metrics.NewRecorder()

	// Usecase
	registry := di.NewRegistry(cfg, evaluator, store, recorder)

	// Handler
	healthH := platformhandler.NewHealthHandler(evaluator)
	evalH := evalhandler.NewEvaluationHandler(registry, cfg.MaxFileSize,
		evalhandler.WithRateLimiter(ratelimiter.NewRateLimiter(cfg.SubmitRateLimit, cfg.SubmitRateWindow)),
	)

	// ルータ生成
	r := router.NewRouter(healthH, evalH, router.Options{
		CORSOrigins:  cfg.CORSOrigins,
		SecureCookie: cfg.SecureCookie,
		SessionTTL:   cfg.SessionTTL,
		Metrics:      recorder.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("サーバーを起動", "addr", cfg.Addr, "endpoint", cfg.EndpointURL, "redis", cfg.UseRedis())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("サーバーの起動に失敗", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("サーバーを停止します")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("サーバーの停止に失敗", "error", err)
	}
	// 保存待ちのセッション状態を書き切る
	if err := registry.Flush(shutdownCtx); err != nil {
		slog.Warn("セッション状態の保存が完了しませんでした", "error", err)
	}
}

package di

import (
	"context"
	"log/slog"

	"deck_evaluator/internal/config"
	"deck_evaluator/internal/feature/evaluation/usecase"
	infraredis "deck_evaluator/internal/platform/redis"
	"deck_evaluator/internal/platform/session"
)

// NewSnapshotStore creates a SnapshotStore implementation.
// If Redis is configured and reachable, it returns a Redis-backed implementation.
// Otherwise, it falls back to process memory.
// The returned function releases the underlying connection.
func NewSnapshotStore(ctx context.Context, cfg *config.Config) (usecase.SnapshotStore, func()) {
	if !cfg.UseRedis() {
		return session.NewSnapshotMemory(), func() {}
	}

	rdb, err := infraredis.NewRedisClient(ctx, infraredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		slog.Warn("Redisに接続できないため、セッション状態をメモリに保持します", "addr", cfg.RedisAddr, "error", err)
		return session.NewSnapshotMemory(), func() {}
	}

	return session.NewSnapshotRedis(rdb, cfg.SessionPrefix), func() {
		if err := rdb.Close(); err != nil {
			slog.Error("Redisクライアントのクローズに失敗", "error", err)
		}
	}
}

// NewRegistry creates the per-browser session registry used by the web server.
func NewRegistry(cfg *config.Config, evaluator usecase.Evaluator, store usecase.SnapshotStore, recorder usecase.Recorder) *usecase.Registry {
	return usecase.NewRegistry(evaluator, store, cfg.SessionTTL,
		usecase.WithTimeout(cfg.Timeout),
		usecase.WithMaxFileSize(cfg.MaxFileSize),
		usecase.WithRecorder(recorder),
	)
}

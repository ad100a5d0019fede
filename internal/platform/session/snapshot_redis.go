// Package session はWeb画面のセッション状態（usecase.Snapshot）の保存先を提供します。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"deck_evaluator/internal/feature/evaluation/usecase"
)

// SnapshotRedis はRedisを使ったusecase.SnapshotStoreの実装です。
// 評価結果の永続化ではなく、画面セッションの有効期間だけ状態を保持します。
type SnapshotRedis struct {
	client *redis.Client
	prefix string
}

var _ usecase.SnapshotStore = (*SnapshotRedis)(nil)

// NewSnapshotRedis はSnapshotRedisの新しいインスタンスを生成します。prefixが空の場合は "deck:session" を使います。
func NewSnapshotRedis(client *redis.Client, prefix string) *SnapshotRedis {
	if prefix == "" {
		prefix = "deck:session"
	}
	return &SnapshotRedis{
		client: client,
		prefix: prefix,
	}
}

// snapshotKey はスナップショットのRedisキーを返します。
func (r *SnapshotRedis) snapshotKey(id string) string {
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

// Save はスナップショットをTTL付きで保存します。
func (r *SnapshotRedis) Save(ctx context.Context, snap usecase.Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid snapshot ttl %v", ttl)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return r.client.Set(ctx, r.snapshotKey(snap.ID), data, ttl).Err()
}

// Load はスナップショットを取得します。存在しない場合はusecase.ErrSnapshotNotFoundを返します。
// 破損したデータは削除し、存在しないものとして扱います。
func (r *SnapshotRedis) Load(ctx context.Context, id string) (*usecase.Snapshot, error) {
	key := r.snapshotKey(id)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, usecase.ErrSnapshotNotFound
		}
		return nil, err
	}

	var snap usecase.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("破損したセッション状態を削除", "key", key, "error", err)
		_ = r.client.Del(ctx, key).Err()
		return nil, usecase.ErrSnapshotNotFound
	}
	return &snap, nil
}

// Delete はスナップショットを削除します。存在しない場合もエラーにしません。
func (r *SnapshotRedis) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.snapshotKey(id)).Err()
}

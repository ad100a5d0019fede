package session

import (
	"context"
	"sync"
	"time"

	"deck_evaluator/internal/feature/evaluation/usecase"
)

// SnapshotMemory はプロセス内メモリを使ったusecase.SnapshotStoreの実装です。
// Redisを設定しない単一インスタンス構成で使います。
type SnapshotMemory struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	snap    usecase.Snapshot
	expires time.Time
}

var _ usecase.SnapshotStore = (*SnapshotMemory)(nil)

// NewSnapshotMemory はSnapshotMemoryの新しいインスタンスを生成します。
func NewSnapshotMemory() *SnapshotMemory {
	return &SnapshotMemory{items: make(map[string]memoryItem), now: time.Now}
}

// Save はスナップショットをTTL付きで保存します。
func (m *SnapshotMemory) Save(_ context.Context, snap usecase.Snapshot, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	m.items[snap.ID] = memoryItem{snap: snap, expires: m.now().Add(ttl)}
	return nil
}

// Load はスナップショットを取得します。期限切れのものは存在しないものとして扱います。
func (m *SnapshotMemory) Load(_ context.Context, id string) (*usecase.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || !m.now().Before(item.expires) {
		delete(m.items, id)
		return nil, usecase.ErrSnapshotNotFound
	}
	snap := item.snap
	return &snap, nil
}

// Delete はスナップショットを削除します。
func (m *SnapshotMemory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// sweepLocked は期限切れの項目を削除します。
func (m *SnapshotMemory) sweepLocked() {
	now := m.now()
	for id, item := range m.items {
		if !now.Before(item.expires) {
			delete(m.items, id)
		}
	}
}

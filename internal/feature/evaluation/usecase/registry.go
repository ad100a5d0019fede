package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"deck_evaluator/internal/feature/evaluation/domain"
	"deck_evaluator/internal/feature/evaluation/domain/entity"
)

const (
	// DefaultSessionTTL はWeb画面のセッションを保持する期間です。
	DefaultSessionTTL = 30 * time.Minute

	persistTimeout = 2 * time.Second
	pollInterval   = time.Second

	flushPollInterval = 10 * time.Millisecond
)

// Registry はWeb画面のセッションをIDごとに管理します。
// 送信を実行しているインスタンスだけが生きたSessionを持ち、
// 状態はSnapshotStoreを通して他のインスタンスからも参照できます。
type Registry struct {
	evaluator Evaluator
	store     SnapshotStore
	ttl       time.Duration
	opts      []Option
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*liveSession

	// 保存待ちのスナップショット。セッションごとに最新の1件だけを保持する
	writeMu sync.Mutex
	pending map[string]Snapshot
	writing map[string]bool
}

type liveSession struct {
	session *Session
	touched time.Time
}

// NewRegistry はRegistryの新しいインスタンスを生成します。
// optsは生成するすべてのSessionに適用されます。
func NewRegistry(evaluator Evaluator, store SnapshotStore, ttl time.Duration, opts ...Option) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Registry{
		evaluator: evaluator,
		store:     store,
		ttl:       ttl,
		opts:      opts,
		now:       time.Now,
		sessions:  make(map[string]*liveSession),
		pending:   make(map[string]Snapshot),
		writing:   make(map[string]bool),
	}
}

// Snapshot はセッションの現在の状態を返します。未知のIDはIdleとして扱います。
func (r *Registry) Snapshot(ctx context.Context, id string) (Snapshot, error) {
	if s, ok := r.lookup(id); ok {
		return s.Snapshot(), nil
	}
	snap, err := r.store.Load(ctx, id)
	if errors.Is(err, ErrSnapshotNotFound) {
		return Snapshot{ID: id, State: entity.StateIdle, UpdatedAt: r.now()}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	return *snap, nil
}

// Start はファイルを検証して送信を開始します。
// ctxは送信の親コンテキストになるため、HTTPリクエストのコンテキストをそのまま渡さないこと。
func (r *Registry) Start(ctx context.Context, id string, doc entity.Document) error {
	s, ok := r.lookup(id)
	if !ok {
		// 他のインスタンスで処理中・処理済みのセッションを上書きしない
		snap, err := r.store.Load(ctx, id)
		switch {
		case err == nil && snap.State == entity.StateSubmitting:
			return domain.ErrSubmissionInProgress
		case err == nil && snap.State.Terminal():
			return domain.ErrResetRequired
		case err != nil && !errors.Is(err, ErrSnapshotNotFound):
			return err
		}
		s = r.session(id)
	}

	return s.Start(ctx, doc)
}

// Reset はセッションをIdleに戻します。
func (r *Registry) Reset(ctx context.Context, id string) error {
	if s, ok := r.lookup(id); ok {
		s.Reset()
		return nil
	}
	return r.store.Delete(ctx, id)
}

// Watch は進捗イベントを購読します。
// このインスタンスで送信中ならSessionから直接、そうでなければ保存済みスナップショットをポーリングして届けます。
func (r *Registry) Watch(ctx context.Context, id string) (<-chan entity.ProgressEvent, func()) {
	if s, ok := r.lookup(id); ok {
		return s.Watch()
	}

	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan entity.ProgressEvent, watchBuffer)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		var last entity.ProgressEvent
		first := true
		for {
			snap, err := r.store.Load(ctx, id)
			if err != nil {
				if !errors.Is(err, ErrSnapshotNotFound) && ctx.Err() == nil {
					slog.Warn("セッション状態の取得に失敗", "session", id, "error", err)
				}
				return
			}
			ev := snap.Progress()
			if snap.State != entity.StateSubmitting && !ev.Stage.Terminal() {
				return
			}
			if first || ev.Stage != last.Stage || ev.BytesSent != last.BytesSent {
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
				first, last = false, ev
			}
			if ev.Stage.Terminal() {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, cancel
}

// lookup は生きたセッションを返します。
func (r *Registry) lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	ls, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	ls.touched = r.now()
	return ls.session, true
}

// session は生きたセッションを返し、なければ生成します。
func (r *Registry) session(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ls, ok := r.sessions[id]; ok {
		ls.touched = r.now()
		return ls.session
	}
	opts := append([]Option{}, r.opts...)
	opts = append(opts, WithID(id), WithObserver(r.persist))
	s := NewSession(r.evaluator, opts...)
	r.sessions[id] = &liveSession{session: s, touched: r.now()}
	return s
}

// evictLocked は送信中でなく、TTLを過ぎたセッションを破棄します。
func (r *Registry) evictLocked() {
	cutoff := r.now().Add(-r.ttl)
	for id, ls := range r.sessions {
		if ls.touched.Before(cutoff) && ls.session.State() != entity.StateSubmitting {
			delete(r.sessions, id)
		}
	}
}

// persist はスナップショットを保存待ちにして、すぐに戻ります。
// Sessionのロック下で呼ばれるため、ストアへの書き込みは別のgoroutineで行います。
// 書き込み中に届いたスナップショットは最新の1件だけが次に書き込まれます。
func (r *Registry) persist(snap Snapshot) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.pending[snap.ID] = snap
	if r.writing[snap.ID] {
		return
	}
	r.writing[snap.ID] = true
	go r.flush(snap.ID)
}

// flush はセッションの保存待ちがなくなるまで書き込みます。
func (r *Registry) flush(id string) {
	for {
		r.writeMu.Lock()
		snap, ok := r.pending[id]
		if !ok {
			delete(r.writing, id)
			r.writeMu.Unlock()
			return
		}
		delete(r.pending, id)
		r.writeMu.Unlock()

		r.write(snap)
	}
}

// write はスナップショットを保存します。Idleに戻ったセッションは削除します。
func (r *Registry) write(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	if snap.State == entity.StateIdle {
		err = r.store.Delete(ctx, snap.ID)
	} else {
		err = r.store.Save(ctx, snap, r.ttl)
	}
	if err != nil {
		slog.Warn("セッション状態の保存に失敗", "session", snap.ID, "state", snap.State, "error", err)
	}
}

// Flush は保存待ちのスナップショットがすべて書き込まれるまで待ちます。
// サーバー停止時に、処理中の状態を他のインスタンスへ残すために使います。
func (r *Registry) Flush(ctx context.Context) error {
	ticker := time.NewTicker(flushPollInterval)
	defer ticker.Stop()
	for {
		r.writeMu.Lock()
		idle := len(r.writing) == 0
		r.writeMu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

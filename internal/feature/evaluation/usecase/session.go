package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"deck_evaluator/internal/feature/evaluation/domain"
	"deck_evaluator/internal/feature/evaluation/domain/entity"
)

// watchBuffer は購読チャネルのバッファサイズです。
const watchBuffer = 16

// ProgressFunc は進捗イベントを受け取るコールバックです。
type ProgressFunc func(entity.ProgressEvent)

// Evaluator はドキュメントを評価エンドポイントへ送信するインターフェースです。
// 実装はアップロード中（StageUploading）とレスポンス待ち（StageAnalyzing）の進捗を報告します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Evaluator interface {
	Evaluate(ctx context.Context, doc entity.Document, progress ProgressFunc) (*entity.EvaluationResult, error)
}

// Recorder は送信結果のメトリクスを記録するインターフェースです。
type Recorder interface {
	SubmissionStarted()
	SubmissionFinished(outcome string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) SubmissionStarted()                       {}
func (noopRecorder) SubmissionFinished(string, time.Duration) {}

// Session は1つのアップロード画面の状態を管理します。
// 同時に送信できるのは1件のみで、リセット後に届いた古い応答は破棄されます。
type Session struct {
	id          string
	evaluator   Evaluator
	maxFileSize int64
	timeout     time.Duration
	recorder    Recorder
	observer    func(Snapshot)
	now         func() time.Time

	mu          sync.Mutex
	state       entity.SessionState
	doc         *entity.Document
	result      *entity.EvaluationResult
	err         error
	progress    entity.ProgressEvent
	generation  uint64
	cancel      context.CancelFunc
	done        chan struct{}
	watchers    map[int]chan entity.ProgressEvent
	nextWatcher int
	updatedAt   time.Time
}

// NewSession はSessionの新しいインスタンスを生成します。
func NewSession(evaluator Evaluator, opts ...Option) *Session {
	s := &Session{
		evaluator:   evaluator,
		maxFileSize: DefaultMaxFileSize,
		timeout:     DefaultTimeout,
		recorder:    noopRecorder{},
		now:         time.Now,
		watchers:    make(map[int]chan entity.ProgressEvent),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.updatedAt = s.now()
	return s
}

// ID はセッションIDを返します。
func (s *Session) ID() string {
	return s.id
}

// State は現在の状態を返します。
func (s *Session) State() entity.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err は直近の失敗理由を返します。
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Result は成功時の評価結果を返します。
func (s *Session) Result() *entity.EvaluationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Select はファイルを検証して選択状態にします。検証に失敗した場合はネットワーク通信を行わずFailureになります。
func (s *Session) Select(doc entity.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectLocked(doc)
}

// Submit は選択中のファイルの送信をバックグラウンドで開始します。
// 送信はctxと待機上限の両方に従って打ち切られます。
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(ctx)
}

// Start はファイルの選択と送信開始を1回のロックで行います。
// 同じセッションへの同時の呼び出しが、互いのファイルを送信することはありません。
func (s *Session) Start(ctx context.Context, doc entity.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selectLocked(doc); err != nil {
		return err
	}
	return s.submitLocked(ctx)
}

func (s *Session) selectLocked(doc entity.Document) error {
	switch s.state {
	case entity.StateSubmitting:
		return domain.ErrSubmissionInProgress
	case entity.StateSuccess, entity.StateFailure:
		return domain.ErrResetRequired
	}

	validated, err := ValidateDocument(doc, s.maxFileSize)
	if err != nil {
		slog.Info("ファイルの検証に失敗", "session", s.id, "file", doc.Name, "error", err)
		s.doc = nil
		s.state = entity.StateFailure
		s.err = err
		s.progress = entity.ProgressEvent{}
		s.touchLocked()
		return err
	}

	s.doc = &validated
	s.state = entity.StateSelecting
	s.err = nil
	s.touchLocked()
	return nil
}

func (s *Session) submitLocked(ctx context.Context) error {
	switch s.state {
	case entity.StateSubmitting:
		return domain.ErrSubmissionInProgress
	case entity.StateSuccess, entity.StateFailure:
		return domain.ErrResetRequired
	case entity.StateIdle:
		return domain.ErrNoDocument
	}

	doc := *s.doc
	s.generation++
	gen := s.generation

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	s.cancel = cancel
	s.state = entity.StateSubmitting
	s.result, s.err = nil, nil
	done := make(chan struct{})
	s.done = done

	slog.Info("評価リクエストを送信", "session", s.id, "file", doc.Name, "size", doc.Size(), "mime", doc.MIMEType)
	s.recorder.SubmissionStarted()
	s.emitLocked(entity.ProgressEvent{Stage: entity.StageStarted, TotalBytes: doc.Size()})

	go s.run(runCtx, cancel, gen, doc, done)
	return nil
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, gen uint64, doc entity.Document, done chan struct{}) {
	defer close(done)
	defer cancel()

	start := s.now()
	result, err := s.evaluator.Evaluate(ctx, doc, func(ev entity.ProgressEvent) {
		s.onProgress(gen, ev)
	})
	if err == nil && result == nil {
		err = fmt.Errorf("%w: empty result", domain.ErrInvalidResponse)
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	elapsed := s.now().Sub(start)

	outcome := "success"
	if err != nil {
		outcome = string(ClassifyError(err))
	}
	if !s.finish(gen, result, err) {
		outcome = string(KindCanceled)
	}
	s.recorder.SubmissionFinished(outcome, elapsed)
}

// onProgress は送信中の進捗を反映します。古い送信や終端イベントは無視します。
func (s *Session) onProgress(gen uint64, ev entity.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state != entity.StateSubmitting || ev.Stage.Terminal() {
		return
	}
	if ev.Stage < s.progress.Stage {
		return
	}
	s.emitLocked(ev)
}

// finish は送信結果を反映します。リセット済みの送信だった場合はfalseを返します。
func (s *Session) finish(gen uint64, result *entity.EvaluationResult, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.state != entity.StateSubmitting {
		slog.Debug("リセット済みの送信の応答を破棄", "session", s.id, "error", err)
		return false
	}

	s.cancel = nil
	ev := entity.ProgressEvent{
		Stage:      entity.StageCompleted,
		BytesSent:  s.progress.BytesSent,
		TotalBytes: s.progress.TotalBytes,
	}
	if err != nil {
		slog.Warn("評価に失敗", "session", s.id, "kind", ClassifyError(err), "error", err)
		s.state = entity.StateFailure
		s.err = err
		ev.Stage = entity.StageFailed
		ev.Err = err
	} else {
		slog.Info("評価が完了", "session", s.id, "startup_id", result.StartupID)
		s.state = entity.StateSuccess
		s.result = result
	}
	s.emitLocked(ev)
	s.closeWatchersLocked()
	return true
}

// Reset はファイル・結果・エラーを消去してIdleに戻します。送信中のリクエストはキャンセルします。
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.state = entity.StateIdle
	s.doc, s.result, s.err = nil, nil, nil
	s.progress = entity.ProgressEvent{}
	s.closeWatchersLocked()
	s.touchLocked()
}

// Wait は実行中の送信が終わるまで待ちます。送信していない場合はすぐに戻ります。
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch は進捗イベントを購読します。最初に現在の進捗が届き、終端イベントの後にチャネルは閉じられます。
// 送信中でない場合、直近の終端イベントがあればそれだけを送って閉じます。
func (s *Session) Watch() (<-chan entity.ProgressEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan entity.ProgressEvent, watchBuffer)
	if s.state != entity.StateSubmitting {
		if s.progress.Stage.Terminal() {
			ch <- s.progress
		}
		close(ch)
		return ch, func() {}
	}

	ch <- s.progress
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(c)
		}
	}
}

// Snapshot は現在の状態のコピーを返します。
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		State:     s.state,
		Result:    s.result,
		UpdatedAt: s.updatedAt,
	}
	if s.doc != nil {
		snap.FileName = s.doc.Name
		snap.FileSize = s.doc.Size()
	}
	if s.state == entity.StateSubmitting || s.progress.Stage.Terminal() {
		snap.Stage = s.progress.Stage.String()
		snap.BytesSent = s.progress.BytesSent
		snap.TotalBytes = s.progress.TotalBytes
	}
	if s.err != nil {
		snap.ErrorKind = ClassifyError(s.err)
		snap.Message = UserMessage(s.err)
	}
	return snap
}

func (s *Session) emitLocked(ev entity.ProgressEvent) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	s.progress = ev
	for _, ch := range s.watchers {
		deliver(ch, ev)
	}
	s.touchLocked()
}

func (s *Session) closeWatchersLocked() {
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
}

func (s *Session) touchLocked() {
	s.updatedAt = s.now()
	if s.observer != nil {
		s.observer(s.snapshotLocked())
	}
}

// deliver はブロックせずにイベントを送ります。バッファが満杯の場合は最も古いイベントを捨てます。
// 送信側はロック下の1つだけなので、1件取り除けば必ず空きができます。
func deliver(ch chan entity.ProgressEvent, ev entity.ProgressEvent) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}

package usecase

import "time"

// DefaultTimeout は送信1回あたりの待機上限です。これを過ぎたリクエストは打ち切られ失敗扱いになります。
const DefaultTimeout = 2 * time.Minute

// Option はSessionの設定を変更します。
type Option func(*Session)

// WithID はセッションIDを設定します。
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithMaxFileSize はファイルサイズの上限を設定します。
func WithMaxFileSize(n int64) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithTimeout は送信の待機上限を設定します。
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRecorder はメトリクスの記録先を設定します。
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithObserver は状態が変わるたびに呼ばれる関数を設定します。
// セッションのロックを保持したまま呼ばれるため、速やかに戻ること。
func WithObserver(fn func(Snapshot)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithClock は現在時刻の取得関数を差し替えます（テスト用）。
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

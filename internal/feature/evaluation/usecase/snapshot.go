package usecase

import (
	"context"
	"errors"
	"time"

	"deck_evaluator/internal/feature/evaluation/domain/entity"
)

// ErrSnapshotNotFound は保存済みのスナップショットが見つからない場合に返されます。
var ErrSnapshotNotFound = errors.New("session snapshot not found")

// Snapshot はセッション状態の直列化可能なコピーです。
// Web画面の描画と、複数インスタンス間での状態共有に使います。
type Snapshot struct {
	ID         string                   `json:"id"`
	State      entity.SessionState      `json:"state"`
	FileName   string                   `json:"file_name,omitempty"`
	FileSize   int64                    `json:"file_size,omitempty"`
	Stage      string                   `json:"stage,omitempty"`
	BytesSent  int64                    `json:"bytes_sent,omitempty"`
	TotalBytes int64                    `json:"total_bytes,omitempty"`
	Result     *entity.EvaluationResult `json:"result,omitempty"`
	ErrorKind  ErrorKind                `json:"error_kind,omitempty"`
	Message    string                   `json:"message,omitempty"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

// Progress はスナップショットから進捗イベントを復元します。
func (s Snapshot) Progress() entity.ProgressEvent {
	stage, ok := entity.ParseStage(s.Stage)
	if !ok {
		switch s.State {
		case entity.StateSuccess:
			stage = entity.StageCompleted
		case entity.StateFailure:
			stage = entity.StageFailed
		}
	}
	return entity.ProgressEvent{
		Stage:      stage,
		BytesSent:  s.BytesSent,
		TotalBytes: s.TotalBytes,
		At:         s.UpdatedAt,
	}
}

// SnapshotStore はスナップショットの保存先です。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot, ttl time.Duration) error
	Load(ctx context.Context, id string) (*Snapshot, error)
	Delete(ctx context.Context, id string) error
}

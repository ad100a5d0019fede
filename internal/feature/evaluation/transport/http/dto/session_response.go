// Package dto はWeb画面向けのレスポンスDTOを定義します。
package dto

import (
	"time"

	"deck_evaluator/internal/feature/evaluation/domain/entity"
	"deck_evaluator/internal/feature/evaluation/usecase"
)

// SessionResponse は GET /result と POST /evaluate（JSON）のレスポンスです。
type SessionResponse struct {
	ID         string                   `json:"id"`
	State      string                   `json:"state"`
	FileName   string                   `json:"file_name,omitempty"`
	FileSize   int64                    `json:"file_size,omitempty"`
	Stage      string                   `json:"stage,omitempty"`
	StageLabel string                   `json:"stage_label,omitempty"`
	Percent    float64                  `json:"percent"`
	Result     *entity.EvaluationResult `json:"result,omitempty"`
	ErrorKind  string                   `json:"error_kind,omitempty"`
	Message    string                   `json:"message,omitempty"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

// NewSessionResponse はスナップショットからレスポンスを生成します。
func NewSessionResponse(snap usecase.Snapshot) SessionResponse {
	res := SessionResponse{
		ID:        snap.ID,
		State:     snap.State.String(),
		FileName:  snap.FileName,
		FileSize:  snap.FileSize,
		Stage:     snap.Stage,
		Result:    snap.Result,
		Message:   snap.Message,
		UpdatedAt: snap.UpdatedAt,
	}
	if snap.ErrorKind != "" && snap.ErrorKind != usecase.KindNone {
		res.ErrorKind = string(snap.ErrorKind)
	}
	if snap.Stage != "" {
		ev := snap.Progress()
		res.StageLabel = ev.Stage.Label()
		res.Percent = ev.Percent()
	}
	return res
}

// ProgressEvent はSSEで送る進捗イベントです。
type ProgressEvent struct {
	Stage      string  `json:"stage"`
	Label      string  `json:"label"`
	BytesSent  int64   `json:"bytes_sent"`
	TotalBytes int64   `json:"total_bytes"`
	Percent    float64 `json:"percent"`
	Terminal   bool    `json:"terminal"`
	Message    string  `json:"message,omitempty"`
}

// NewProgressEvent は進捗イベントからDTOを生成します。
func NewProgressEvent(ev entity.ProgressEvent) ProgressEvent {
	out := ProgressEvent{
		Stage:      ev.Stage.String(),
		Label:      ev.Stage.Label(),
		BytesSent:  ev.BytesSent,
		TotalBytes: ev.TotalBytes,
		Percent:    ev.Percent(),
		Terminal:   ev.Stage.Terminal(),
	}
	if ev.Err != nil {
		out.Message = usecase.UserMessage(ev.Err)
	}
	return out
}

// ErrorResponse はエラー時のレスポンスです。
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

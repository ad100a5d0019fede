// Package handler はevaluationフィーチャーのWeb画面とHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"deck_evaluator/internal/feature/evaluation/domain"
	"deck_evaluator/internal/feature/evaluation/domain/entity"
	"deck_evaluator/internal/feature/evaluation/report"
	"deck_evaluator/internal/feature/evaluation/transport/http/dto"
	"deck_evaluator/internal/feature/evaluation/usecase"
	"deck_evaluator/internal/shared/ratelimiter"
)

// multipartOverhead はmultipart本文のうちファイル以外の部分に許す余裕です。
const multipartOverhead = 1 << 20

// SessionService はブラウザセッションごとの評価フローを操作するインターフェースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type SessionService interface {
	Snapshot(ctx context.Context, id string) (usecase.Snapshot, error)
	Start(ctx context.Context, id string, doc entity.Document) error
	Reset(ctx context.Context, id string) error
	Watch(ctx context.Context, id string) (<-chan entity.ProgressEvent, func())
}

// EvaluationHandler はアップロード画面と評価フローのHTTPリクエストを処理します。
type EvaluationHandler struct {
	svc         SessionService
	maxFileSize int64
	limiter     ratelimiter.RateLimiterInterface
}

// Option はEvaluationHandlerの設定を変更します。
type Option func(*EvaluationHandler)

// WithRateLimiter はセッションごとの送信回数の制限を設定します。
func WithRateLimiter(l ratelimiter.RateLimiterInterface) Option {
	return func(h *EvaluationHandler) { h.limiter = l }
}

// NewEvaluationHandler はEvaluationHandlerの新しいインスタンスを生成します。
func NewEvaluationHandler(svc SessionService, maxFileSize int64, opts ...Option) *EvaluationHandler {
	if maxFileSize <= 0 {
		maxFileSize = usecase.DefaultMaxFileSize
	}
	h := &EvaluationHandler{svc: svc, maxFileSize: maxFileSize}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// pageView は index.html に渡す値です。
type pageView struct {
	Session            dto.SessionResponse
	Report             *report.Report
	Notice             string
	MaxFileSize        int64
	UnsupportedMessage string
}

// Index はセッションの状態に応じてアップロードフォーム・進捗・結果・エラーを表示します。
//
// エンドポイント: GET /
func (h *EvaluationHandler) Index(c *gin.Context) {
	h.renderPage(c, http.StatusOK, "")
}

// Evaluate はアップロードされたファイルを検証し、バックグラウンドで送信を開始します。
//
// エンドポイント: POST /evaluate
// Content-Type: multipart/form-data
// フィールド: file（PDFまたは画像）
func (h *EvaluationHandler) Evaluate(c *gin.Context) {
	id := SessionID(c)
	if h.limiter != nil {
		if ok, wait := h.limiter.Allow(id); !ok {
			slog.Warn("送信回数の上限に到達", "session", id, "retry_after", wait)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			h.respondError(c, domain.ErrRateLimited)
			return
		}
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+multipartOverhead)

	doc, err := h.readDocument(c)
	if err != nil {
		slog.Warn("アップロードファイルの取得に失敗", "session", id, "error", err, "remote_addr", c.ClientIP())
		h.respondError(c, err)
		return
	}

	// 送信はリクエストより長く続くため、キャンセルを引き継がない
	err = h.svc.Start(context.WithoutCancel(c.Request.Context()), id, doc)
	wantJSON := c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
	if err != nil {
		slog.Warn("評価の開始に失敗", "session", id, "error", err)
		kind := usecase.ClassifyError(err)
		// 検証エラーはセッションのFailure状態として画面に表示される
		if wantJSON || (kind != usecase.KindValidation && kind != usecase.KindPayload) {
			h.respondError(c, err)
			return
		}
	}

	if wantJSON {
		snap, err := h.svc.Snapshot(c.Request.Context(), id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, dto.NewSessionResponse(snap))
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Events は送信中の進捗をServer-Sent Eventsで配信します。終端イベントの後にストリームを閉じます。
//
// エンドポイント: GET /events
func (h *EvaluationHandler) Events(c *gin.Context) {
	id := SessionID(c)
	events, stop := h.svc.Watch(c.Request.Context(), id)
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				c.SSEvent("end", gin.H{})
				c.Writer.Flush()
				return
			}
			c.SSEvent("progress", dto.NewProgressEvent(ev))
			c.Writer.Flush()
			if ev.Stage.Terminal() {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

// Result はセッションの状態をJSONで返します。
//
// エンドポイント: GET /result
func (h *EvaluationHandler) Result(c *gin.Context) {
	snap, err := h.svc.Snapshot(c.Request.Context(), SessionID(c))
	if err != nil {
		slog.Error("セッション状態の取得に失敗", "session", SessionID(c), "error", err)
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, dto.NewSessionResponse(snap))
}

// Reset はファイル・結果・エラーを消去し、送信中であれば中断します。
//
// エンドポイント: POST /reset
func (h *EvaluationHandler) Reset(c *gin.Context) {
	id := SessionID(c)
	if err := h.svc.Reset(c.Request.Context(), id); err != nil {
		slog.Error("セッションのリセットに失敗", "session", id, "error", err)
		h.respondError(c, err)
		return
	}
	slog.Info("セッションをリセット", "session", id)

	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		c.JSON(http.StatusOK, dto.NewSessionResponse(usecase.Snapshot{ID: id, State: entity.StateIdle}))
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// readDocument はmultipartのfileフィールドを読み込みます。
func (h *EvaluationHandler) readDocument(c *gin.Context) (entity.Document, error) {
	file, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return entity.Document{}, domain.ErrPayloadTooLarge
		}
		return entity.Document{}, domain.ErrNoDocument
	}
	if file.Size > h.maxFileSize {
		return entity.Document{}, domain.ErrPayloadTooLarge
	}

	f, err := file.Open()
	if err != nil {
		return entity.Document{}, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("アップロードファイルのクローズに失敗", "error", err)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return entity.Document{}, err
	}
	return entity.Document{
		Name:        file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// respondError はエラー分類に応じたステータスで応答します。HTMLの場合はメッセージ付きで画面を再表示します。
func (h *EvaluationHandler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := usecase.UserMessage(err)
	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		c.JSON(status, dto.ErrorResponse{Error: string(usecase.ClassifyError(err)), Message: msg})
		return
	}
	h.renderPage(c, status, msg)
}

func (h *EvaluationHandler) renderPage(c *gin.Context, status int, notice string) {
	id := SessionID(c)
	snap, err := h.svc.Snapshot(c.Request.Context(), id)
	if err != nil {
		slog.Error("セッション状態の取得に失敗", "session", id, "error", err)
		snap = usecase.Snapshot{ID: id, State: entity.StateIdle}
		if notice == "" {
			notice = usecase.MsgUnknown
		}
		status = http.StatusInternalServerError
	}

	view := pageView{
		Session:            dto.NewSessionResponse(snap),
		Notice:             notice,
		MaxFileSize:        h.maxFileSize,
		UnsupportedMessage: usecase.MsgUnsupportedFile,
	}
	if snap.State == entity.StateSuccess && snap.Result != nil {
		rep := report.Build(snap.Result)
		view.Report = &rep
	}
	c.Header("Cache-Control", "no-store")
	c.HTML(status, "index.html", view)
}

func statusFor(err error) int {
	switch usecase.ClassifyError(err) {
	case usecase.KindValidation:
		return http.StatusBadRequest
	case usecase.KindPayload:
		return http.StatusRequestEntityTooLarge
	case usecase.KindConflict:
		return http.StatusConflict
	case usecase.KindRateLimited:
		return http.StatusTooManyRequests
	case usecase.KindConnection, usecase.KindServer, usecase.KindTimeout:
		return http.StatusBadGateway
	case usecase.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

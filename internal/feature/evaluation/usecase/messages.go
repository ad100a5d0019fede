package usecase

import (
	"context"
	"errors"

	"deck_evaluator/internal/feature/evaluation/domain"
)

// ErrorKind はエラー分類の名前です。メトリクスのラベルにも使います。
type ErrorKind string

const (
	KindNone         ErrorKind = "none"
	KindValidation   ErrorKind = "validation"
	KindConnection   ErrorKind = "connection"
	KindUnauthorized ErrorKind = "unauthorized"
	KindPayload      ErrorKind = "payload_too_large"
	KindTimeout      ErrorKind = "timeout"
	KindServer       ErrorKind = "server"
	KindCanceled     ErrorKind = "canceled"
	KindConflict     ErrorKind = "conflict"
	KindRateLimited  ErrorKind = "rate_limited"
	KindUnknown      ErrorKind = "unknown"
)

// ユーザー向けメッセージ
const (
	MsgUnsupportedFile = "Please select a PDF or image file (PDF, PNG, JPG)."
	MsgEmptyFile       = "The selected file is empty."
	MsgPayloadTooLarge = "File too large. Please upload a smaller file."
	MsgConnection      = "Cannot connect to the evaluation server. Please check that the server is running and reachable."
	MsgUnauthorized    = "Authentication failed. Please check your access token."
	MsgTimeout         = "The evaluation took too long and was abandoned. Please try again."
	MsgInProgress      = "An evaluation is already in progress."
	MsgNoDocument      = "Please select a file first."
	MsgResetRequired   = "Please start a new analysis first."
	MsgCanceled        = "The evaluation was cancelled."
	MsgRateLimited     = "Too many evaluations. Please wait a moment and try again."
	MsgUnknown         = "Evaluation failed. Please try again."
)

// ClassifyError はエラーを分類します。
func ClassifyError(err error) ErrorKind {
	var se *domain.ServerError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, domain.ErrUnsupportedFileType), errors.Is(err, domain.ErrEmptyFile), errors.Is(err, domain.ErrNoDocument):
		return KindValidation
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return KindPayload
	case errors.Is(err, domain.ErrConnection):
		return KindConnection
	case errors.Is(err, domain.ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, domain.ErrTimeout):
		return KindTimeout
	case errors.Is(err, domain.ErrSubmissionInProgress), errors.Is(err, domain.ErrResetRequired):
		return KindConflict
	case errors.Is(err, domain.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &se):
		return KindServer
	default:
		return KindUnknown
	}
}

// UserMessage はエラーをユーザー向けのメッセージに変換します。
// 分類済みのエラーは固定メッセージ、サーバーがdetailを返した場合はそのまま表示します。
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return MsgUnsupportedFile
	case errors.Is(err, domain.ErrEmptyFile):
		return MsgEmptyFile
	case errors.Is(err, domain.ErrNoDocument):
		return MsgNoDocument
	case errors.Is(err, domain.ErrSubmissionInProgress):
		return MsgInProgress
	case errors.Is(err, domain.ErrResetRequired):
		return MsgResetRequired
	case errors.Is(err, domain.ErrRateLimited):
		return MsgRateLimited
	}

	switch ClassifyError(err) {
	case KindConnection:
		return MsgConnection
	case KindUnauthorized:
		return MsgUnauthorized
	case KindPayload:
		return MsgPayloadTooLarge
	case KindTimeout:
		return MsgTimeout
	case KindCanceled:
		return MsgCanceled
	case KindServer:
		var se *domain.ServerError
		if errors.As(err, &se) && se.Detail != "" {
			return se.Detail
		}
	}
	return MsgUnknown
}

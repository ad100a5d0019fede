// Package domain はevaluationフィーチャーのドメインエラーを定義します。
package domain

import (
	"errors"
	"fmt"
)

// 評価フローのエラー分類です。上位層はerrors.Isで判定し、ユーザー向けメッセージに変換します。
var (
	// ErrUnsupportedFileType はPDF・画像以外のファイルが選択された場合に返されます。
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrEmptyFile は空のファイルが選択された場合に返されます。
	ErrEmptyFile = errors.New("file is empty")

	// ErrPayloadTooLarge はファイルがサイズ上限を超えた場合に返されます（クライアント側・HTTP 413の両方）。
	ErrPayloadTooLarge = errors.New("file exceeds the size limit")

	// ErrConnection は評価エンドポイントに接続できない場合に返されます。
	ErrConnection = errors.New("evaluation endpoint unreachable")

	// ErrUnauthorized は認証情報が拒否された、または期限切れの場合に返されます。
	ErrUnauthorized = errors.New("credential rejected")

	// ErrTimeout は待機上限を超えてリクエストを打ち切った場合に返されます。
	ErrTimeout = errors.New("evaluation timed out")

	// ErrInvalidResponse はレスポンス本文を解釈できない場合に返されます。
	ErrInvalidResponse = errors.New("invalid response from evaluation endpoint")

	// ErrSubmissionInProgress は送信中に再送信しようとした場合に返されます。
	ErrSubmissionInProgress = errors.New("a submission is already in progress")

	// ErrNoDocument はファイル未選択のまま送信しようとした場合に返されます。
	ErrNoDocument = errors.New("no document selected")

	// ErrResetRequired は終端状態からリセットせずに操作しようとした場合に返されます。
	ErrResetRequired = errors.New("session must be reset first")

	// ErrRateLimited は短時間に送信を繰り返した場合に返されます。
	ErrRateLimited = errors.New("too many submissions")
)

// ServerError は評価エンドポイントがエラーステータスを返した場合のエラーです。
// Detailはレスポンス本文のdetailをそのまま保持します。
type ServerError struct {
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("evaluation endpoint returned http %d", e.StatusCode)
	}
	return fmt.Sprintf("evaluation endpoint returned http %d: %s", e.StatusCode, e.Detail)
}

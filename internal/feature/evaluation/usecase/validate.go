// Package usecase はevaluationフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"deck_evaluator/internal/feature/evaluation/domain"
	"deck_evaluator/internal/feature/evaluation/domain/entity"
)

const (
	// DefaultMaxFileSize はアップロードできるファイルの既定の最大サイズ（10MB）です。
	DefaultMaxFileSize = 10 * 1024 * 1024

	mimePDF         = "application/pdf"
	mimeOctetStream = "application/octet-stream"
)

// ValidateDocument はファイルがPDFまたは画像であり、サイズ上限内であることを検証します。
// 判定は内容のスニッフィングで行い、申告されたContent-Typeが明らかに別形式の場合も拒否します。
// 成功時はMIMETypeを設定したDocumentを返します。
func ValidateDocument(doc entity.Document, maxSize int64) (entity.Document, error) {
	if len(doc.Data) == 0 {
		return doc, fmt.Errorf("%s: %w", doc.Name, domain.ErrEmptyFile)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if doc.Size() > maxSize {
		return doc, fmt.Errorf("%s is %d bytes, limit is %d: %w", doc.Name, doc.Size(), maxSize, domain.ErrPayloadTooLarge)
	}

	if declared := baseMediaType(doc.ContentType); declared != "" && declared != mimeOctetStream && !acceptedType(declared) {
		return doc, fmt.Errorf("%s declared as %s: %w", doc.Name, declared, domain.ErrUnsupportedFileType)
	}

	detected := baseMediaType(mimetype.Detect(doc.Data).String())
	if !acceptedType(detected) {
		return doc, fmt.Errorf("%s detected as %s: %w", doc.Name, detected, domain.ErrUnsupportedFileType)
	}

	doc.MIMEType = detected
	return doc, nil
}

// acceptedType はPDFまたは画像のMIMEタイプかどうかを返します。
func acceptedType(mt string) bool {
	return mt == mimePDF || strings.HasPrefix(mt, "image/")
}

// baseMediaType はパラメータを除いた小文字のメディアタイプを返します。
func baseMediaType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(ct)
	}
	return mt
}

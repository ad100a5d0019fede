package usecase

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deck_evaluator/internal/feature/evaluation/domain"
	"deck_evaluator/internal/feature/evaluation/domain/entity"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
)

func TestValidateDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		doc      entity.Document
		maxSize  int64
		wantErr  error
		wantMIME string
	}{
		{
			name:     "success: pdf",
			doc:      entity.Document{Name: "deck.pdf", ContentType: "application/pdf", Data: pdfBytes},
			wantMIME: "application/pdf",
		},
		{
			name:     "success: png without declared type",
			doc:      entity.Document{Name: "slide.png", Data: pngBytes},
			wantMIME: "image/png",
		},
		{
			name:     "success: octet-stream declared",
			doc:      entity.Document{Name: "deck.pdf", ContentType: "application/octet-stream", Data: pdfBytes},
			wantMIME: "application/pdf",
		},
		{
			name:    "error: empty file",
			doc:     entity.Document{Name: "deck.pdf", ContentType: "application/pdf"},
			wantErr: domain.ErrEmptyFile,
		},
		{
			name:    "error: text file",
			doc:     entity.Document{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello world")},
			wantErr: domain.ErrUnsupportedFileType,
		},
		{
			name:    "error: text renamed to pdf",
			doc:     entity.Document{Name: "deck.pdf", Data: []byte("just some text")},
			wantErr: domain.ErrUnsupportedFileType,
		},
		{
			name:    "error: pdf bytes declared as word document",
			doc:     entity.Document{Name: "deck.docx", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Data: pdfBytes},
			wantErr: domain.ErrUnsupportedFileType,
		},
		{
			name:    "error: over size limit",
			doc:     entity.Document{Name: "deck.pdf", ContentType: "application/pdf", Data: append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte{' '}, 64)...)},
			maxSize: 32,
			wantErr: domain.ErrPayloadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ValidateDocument(tt.doc, tt.maxSize)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, got.MIMEType)
		})
	}
}

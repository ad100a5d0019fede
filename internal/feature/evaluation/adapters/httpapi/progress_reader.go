package httpapi

import (
	"io"

	"deck_evaluator/internal/feature/evaluation/domain/entity"
	"deck_evaluator/internal/feature/evaluation/usecase"
)

// progressStep はアップロード進捗を通知する最小の増分（%）です。
const progressStep = 5

// progressReader はリクエスト本文の読み出し量を数え、アップロード進捗を通知します。
// 本文を読み切った時点でStageAnalyzingを1回だけ通知します。
type progressReader struct {
	r          io.Reader
	total      int64
	sent       int64
	lastStep   int64
	analyzing  bool
	onProgress usecase.ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn usecase.ProgressFunc) *progressReader {
	if fn == nil {
		fn = func(entity.ProgressEvent) {}
	}
	return &progressReader{r: r, total: total, lastStep: -1, onProgress: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.reportUpload()
	}
	if err == io.EOF && !p.analyzing {
		p.analyzing = true
		p.onProgress(entity.ProgressEvent{
			Stage:      entity.StageAnalyzing,
			BytesSent:  p.sent,
			TotalBytes: p.total,
		})
	}
	return n, err
}

func (p *progressReader) reportUpload() {
	if p.total <= 0 {
		return
	}
	step := p.sent * 100 / p.total / progressStep
	if step <= p.lastStep {
		return
	}
	p.lastStep = step
	p.onProgress(entity.ProgressEvent{
		Stage:      entity.StageUploading,
		BytesSent:  p.sent,
		TotalBytes: p.total,
	})
}

package entity

import "time"

// Stage は送信中リクエストのライフサイクル段階です。
// 実際のリクエストイベントからのみ進み、タイマーでは進みません。
type Stage int

const (
	StageStarted   Stage = iota // 送信開始
	StageUploading              // 本文を送信中
	StageAnalyzing              // 本文送信完了、レスポンス待ち
	StageCompleted              // 成功
	StageFailed                 // 失敗
)

var stageNames = map[Stage]string{
	StageStarted:   "started",
	StageUploading: "uploading",
	StageAnalyzing: "analyzing",
	StageCompleted: "completed",
	StageFailed:    "failed",
}

var stageLabels = map[Stage]string{
	StageStarted:   "Preparing upload",
	StageUploading: "Uploading document",
	StageAnalyzing: "Waiting for analysis",
	StageCompleted: "Analysis complete",
	StageFailed:    "Analysis failed",
}

// String はワイヤー上・ログ上の名前を返します。
func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "unknown"
}

// Label は画面表示用のラベルを返します。
func (s Stage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return "Unknown"
}

// Terminal は終端段階（成功または失敗）かどうかを返します。
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// ParseStage は名前からStageを復元します。
func ParseStage(name string) (Stage, bool) {
	for s, n := range stageNames {
		if n == name {
			return s, true
		}
	}
	return StageStarted, false
}

// ProgressEvent は進捗イベントです。
type ProgressEvent struct {
	Stage      Stage
	BytesSent  int64
	TotalBytes int64
	Err        error
	At         time.Time
}

// Percent はアップロード済みの割合（0〜100）を返します。
func (e ProgressEvent) Percent() float64 {
	switch {
	case e.Stage == StageAnalyzing || e.Stage.Terminal():
		return 100
	case e.TotalBytes <= 0:
		return 0
	}
	p := float64(e.BytesSent) / float64(e.TotalBytes) * 100
	if p > 100 {
		return 100
	}
	return p
}

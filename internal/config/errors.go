package config

import "errors"

// 呼び出し側がerrors.Isで判定できるエラー分類です。
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

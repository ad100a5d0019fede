// Package httpapi は評価エンドポイントのHTTPクライアントを提供します。
package httpapi

// Config は評価エンドポイントへの接続設定です。
type Config struct {
	BaseURL      string // 例: "https://evaluator.example.com"
	EvaluatePath string // 評価API（既定 "/evaluate"）
	LoginPath    string // ログインAPI（既定 "/auth/login"）
	HealthPath   string // ヘルスチェック（既定 "/health"）
	StartupPath  string // 保存済み評価の取得API（既定 "/startup"）
	FieldName    string // multipartのファイルフィールド名（既定 "file"）
}

// withDefaults は未設定の項目に既定値を補います。
func (c Config) withDefaults() Config {
	if c.EvaluatePath == "" {
		c.EvaluatePath = "/evaluate"
	}
	if c.LoginPath == "" {
		c.LoginPath = "/auth/login"
	}
	if c.HealthPath == "" {
		c.HealthPath = "/health"
	}
	if c.StartupPath == "" {
		c.StartupPath = "/startup"
	}
	if c.FieldName == "" {
		c.FieldName = "file"
	}
	return c
}

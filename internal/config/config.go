// Package config は評価クライアントの設定を定義し、読み込みます。
//
// 設定は起動時に一度だけ読み込み、不変の値としてコンポジションルートから各層へ渡します。
package config

import (
	"time"
)

// DefaultEndpointURL はビルド時に埋め込む評価エンドポイントの既定URLです。
//
//	go build -ldflags "-X deck_evaluator/internal/config.DefaultEndpointURL=https://evaluator.example.com"
var DefaultEndpointURL = "http://localhost:8080"

// Config はプロセス全体の設定です。
type Config struct {
	// EndpointURL は評価エンドポイントのベースURLです。
	EndpointURL string `koanf:"endpoint_url"`
	// EvaluatePath, LoginPath, HealthPath はエンドポイント上の各APIのパスです。
	EvaluatePath string `koanf:"evaluate_path"`
	LoginPath    string `koanf:"login_path"`
	HealthPath   string `koanf:"health_path"`
	// FieldName はmultipartのファイルフィールド名です。
	FieldName string `koanf:"field_name"`
	// UserAgent は送信するUser-Agentです。
	UserAgent string `koanf:"user_agent"`

	// Token は固定のBearerトークンです。最優先で使います。
	Token string `koanf:"token"`
	// Username, Password が設定されている場合はログインしてトークンを取得します。
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	// JWTSecret が設定されている場合は共有シークレットでトークンを自前で発行します（開発環境向け）。
	JWTSecret  string        `koanf:"jwt_secret"`
	JWTSubject string        `koanf:"jwt_subject"`
	JWTTTL     time.Duration `koanf:"jwt_ttl"`

	// Timeout は送信1回あたりの待機上限です。
	Timeout time.Duration `koanf:"timeout"`
	// MaxFileSize はアップロードできるファイルの最大バイト数です。
	MaxFileSize int64 `koanf:"max_file_size"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Addr はWebサーバーの待ち受けアドレスです。
	Addr string `koanf:"addr"`
	// CORSOrigins はWebサーバーで許可するオリジンです。"*" はすべて許可します。
	CORSOrigins []string `koanf:"cors_origins"`
	// SecureCookie はセッションCookieにSecure属性を付けるかどうかです。
	SecureCookie bool `koanf:"secure_cookie"`
	// SubmitRateLimit はブラウザセッションごとにSubmitRateWindowあたり許可する送信回数です。0で無制限。
	SubmitRateLimit  int           `koanf:"submit_rate_limit"`
	SubmitRateWindow time.Duration `koanf:"submit_rate_window"`

	// RedisAddr が空の場合、セッション状態はプロセス内メモリに保持します。
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	SessionPrefix string        `koanf:"session_prefix"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
}

// New は既定値を持つConfigを生成します。
func New() *Config {
	return &Config{
		EndpointURL:      DefaultEndpointURL,
		EvaluatePath:     "/evaluate",
		LoginPath:        "/auth/login",
		HealthPath:       "/health",
		FieldName:        "file",
		JWTSubject:       "deck-evaluator",
		JWTTTL:           time.Hour,
		Timeout:          2 * time.Minute,
		MaxFileSize:      10 * 1024 * 1024,
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":3000",
		CORSOrigins:      []string{"*"},
		SubmitRateLimit:  10,
		SubmitRateWindow: time.Minute,
		SessionPrefix:    "deck:session",
		SessionTTL:       30 * time.Minute,
	}
}

// UseRedis はRedisをセッション状態の保存先に使うかどうかを返します。
func (c *Config) UseRedis() bool {
	return c.RedisAddr != ""
}

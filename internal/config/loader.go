package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix は設定を上書きする環境変数の接頭辞です。
	EnvPrefix = "DECK_"
	// EnvConfigFile はYAML設定ファイルのパスを指定する環境変数です。
	EnvConfigFile = "DECK_EVALUATOR_CONFIG"
)

// LoadOptions は読み込み元を変更します。
type LoadOptions struct {
	// ConfigFile はYAMLファイルのパスです。空の場合はDECK_EVALUATOR_CONFIGを使います。
	ConfigFile string
	// DotEnvFiles は環境変数として読み込む.envファイルです。存在しないファイルは無視します。
	DotEnvFiles []string
}

// Load は既定値、YAMLファイル、.env、環境変数の順に重ねてConfigを構築します。
// 優先順位（低 → 高）:
//  1. 既定値（New）
//  2. YAMLファイル（ConfigFile または DECK_EVALUATOR_CONFIG）
//  3. 環境変数（接頭辞 DECK_、.envの内容を含む）
func Load(opts LoadOptions) (*Config, error) {
	// .envを読み込む（既存の環境変数は上書きしない）
	files := opts.DotEnvFiles
	if files == nil {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug(".envが見つからないため環境変数のみを使用", "file", f)
				continue
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, f, err)
		}
	}

	k := koanf.New(".")

	path := opts.ConfigFile
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// DECK_ENDPOINT_URL -> endpoint_url のように接頭辞を除いたフラットなキーに変換する
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		if s == EnvConfigFile {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	// Cloud Runなどが設定するPORTは、addrが明示されていない場合のみ使う
	if !k.Exists("addr") {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Addr = ":" + port
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値を検証します。
func (c *Config) Validate() error {
	u, err := url.Parse(c.EndpointURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: endpoint_url must be an absolute http(s) URL, got %q", ErrInvalidConfig, c.EndpointURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("%w: max_file_size must be positive", ErrInvalidConfig)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("%w: session_ttl must be positive", ErrInvalidConfig)
	}
	if (c.Username == "") != (c.Password == "") {
		return fmt.Errorf("%w: username and password must be set together", ErrInvalidConfig)
	}
	if c.SubmitRateLimit < 0 || (c.SubmitRateLimit > 0 && c.SubmitRateWindow <= 0) {
		return fmt.Errorf("%w: submit_rate_limit must not be negative and needs a positive submit_rate_window", ErrInvalidConfig)
	}
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	return nil
}

// splitList は環境変数で "a,b" のように1つの文字列として渡された値を分割します。
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

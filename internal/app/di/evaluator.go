// Package di provides dependency injection factories for creating application components.
package di

import (
	"log/slog"

	"deck_evaluator/internal/config"
	"deck_evaluator/internal/feature/evaluation/adapters/httpapi"
	infrahttp "deck_evaluator/internal/platform/http"
	jwtauth "deck_evaluator/internal/platform/jwt"
)

// clientRole は自前で発行するトークンのroleクレームです。
const clientRole = "client"

// NewEvaluator creates a fully configured evaluation client with HTTP client and credentials.
func NewEvaluator(cfg *config.Config) *httpapi.Client {
	apiCfg := httpapi.Config{
		BaseURL:      cfg.EndpointURL,
		EvaluatePath: cfg.EvaluatePath,
		LoginPath:    cfg.LoginPath,
		HealthPath:   cfg.HealthPath,
		FieldName:    cfg.FieldName,
	}
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout, cfg.UserAgent)
	anonymous := httpapi.NewClient(apiCfg, httpClient, nil)

	creds := NewCredentials(cfg, anonymous)
	if creds == nil {
		return anonymous
	}
	return httpapi.NewClient(apiCfg, httpClient, creds)
}

// NewCredentials selects a CredentialSource in order of precedence:
// static token, self-minted JWT, then username/password login.
// It returns nil when no credentials are configured.
func NewCredentials(cfg *config.Config, anonymous *httpapi.Client) httpapi.CredentialSource {
	switch {
	case cfg.Token != "":
		slog.Debug("固定トークンで認証")
		return jwtauth.NewStaticCredential(cfg.Token)
	case cfg.JWTSecret != "":
		slog.Debug("共有シークレットでトークンを発行", "subject", cfg.JWTSubject)
		return jwtauth.NewMintedCredential(jwtauth.NewGenerator(cfg.JWTSecret, cfg.JWTTTL), cfg.JWTSubject, clientRole)
	case cfg.Username != "":
		slog.Debug("ログインでトークンを取得", "username", cfg.Username)
		return httpapi.NewLoginCredential(anonymous, cfg.Username, cfg.Password)
	default:
		return nil
	}
}

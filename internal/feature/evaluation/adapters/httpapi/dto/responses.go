// Package dto は評価エンドポイントのレスポンスDTOを定義します。
package dto

import (
	"encoding/json"

	"deck_evaluator/internal/feature/evaluation/domain/entity"
)

// ErrorResponse はエラー時のレスポンス本文です。
// FastAPI形式の {"detail": "..."} と {"error": "..."} の両方を受け付けます。
// detailは検証エラー時に配列になることがあるため、RawMessageで受けます。
type ErrorResponse struct {
	Detail  json.RawMessage `json:"detail,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Text は表示できるエラー詳細を返します。文字列のdetailを優先します。
func (e ErrorResponse) Text() string {
	if len(e.Detail) > 0 {
		var s string
		if err := json.Unmarshal(e.Detail, &s); err == nil && s != "" {
			return s
		}
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// LoginResponse は /auth/login のレスポンスです。
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HealthResponse は /health のレスポンスです。
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp,omitempty"`
	Message   string            `json:"message,omitempty"`
	Services  map[string]string `json:"services,omitempty"`
}

// StartupResponse は /startup/{startup_id} のレスポンスです。
type StartupResponse struct {
	StartupID   string      `json:"startup_id"`
	Data        StartupData `json:"data"`
	RetrievedAt string      `json:"retrieved_at,omitempty"`
}

// StartupData は保存済みの企業情報と評価の要約です。
type StartupData struct {
	CompanyName     string   `json:"company_name,omitempty"`
	Sector          string   `json:"sector,omitempty"`
	Stage           string   `json:"stage,omitempty"`
	RevenueModel    string   `json:"revenue_model,omitempty"`
	ARRCrore        *float64 `json:"arr_crore,omitempty"`
	TeamSize        *float64 `json:"team_size,omitempty"`
	ValuationCrore  *float64 `json:"valuation_pre_money_crore,omitempty"`
	InvestmentScore *float64 `json:"investment_score,omitempty"`
	RiskLevel       string   `json:"risk_level,omitempty"`
}

// ToEntity はレポート表示用の評価結果に変換します。
// 保存済みデータには推奨とレッドフラグが含まれないため、それらは空のままです。
func (s StartupResponse) ToEntity() *entity.EvaluationResult {
	return &entity.EvaluationResult{
		StartupID:     s.StartupID,
		Timestamp:     s.RetrievedAt,
		ExtractedData: &entity.ExtractedData{
			CompanyName:    s.Data.CompanyName,
			Sector:         s.Data.Sector,
			Stage:          s.Data.Stage,
			RevenueModel:   s.Data.RevenueModel,
			ARRCrore:       s.Data.ARRCrore,
			TeamSize:       s.Data.TeamSize,
			ValuationCrore: s.Data.ValuationCrore,
		},
		InvestmentScore: s.Data.InvestmentScore,
		RiskAssessment:  entity.RiskAssessment{RiskLevel: s.Data.RiskLevel},
	}
}

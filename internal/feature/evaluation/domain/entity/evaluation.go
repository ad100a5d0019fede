// Package entity はevaluationフィーチャーのドメインモデルを定義します。
package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// EvaluationResult は評価エンドポイントが1ドキュメントごとに返す評価結果です。
// 数値フィールドはすべてポインタで保持し、欠損（nil）は0ではなく「N/A」として扱います。
type EvaluationResult struct {
	StartupID                string            `json:"startup_id"`
	Timestamp                string            `json:"timestamp,omitempty"`
	ExtractedData            *ExtractedData    `json:"extracted_data,omitempty"`
	SectorComparison         *SectorComparison `json:"sector_comparison,omitempty"`
	RiskAssessment           RiskAssessment    `json:"risk_assessment"`
	InvestmentScore          *float64          `json:"investment_score,omitempty"`
	InvestmentRecommendation string            `json:"investment_recommendation"`

	// カテゴリ別スコア（エンドポイントが返す場合のみ）
	FinancialHealthScore   *float64 `json:"financial_health_score,omitempty"`
	TeamQualityScore       *float64 `json:"team_quality_score,omitempty"`
	MarketOpportunityScore *float64 `json:"market_opportunity_score,omitempty"`
	ProductTractionScore   *float64 `json:"product_traction_score,omitempty"`
	RiskScore              *float64 `json:"risk_score,omitempty"`
	ConfidenceLevel        string   `json:"confidence_level,omitempty"`
}

// OverallRiskScore はrisk_assessment.overall_risk_scoreを返します。
// ない場合はトップレベルのrisk_scoreを使い、どちらもなければnilです。
func (r *EvaluationResult) OverallRiskScore() *float64 {
	if r.RiskAssessment.RiskScore != nil {
		return r.RiskAssessment.RiskScore
	}
	return r.RiskScore
}

// ExtractedData はドキュメントから抽出された企業情報です。
type ExtractedData struct {
	CompanyName    string                 `json:"company_name,omitempty"`
	Sector         string                 `json:"sector,omitempty"`
	Stage          string                 `json:"stage,omitempty"`
	TeamSize       *float64               `json:"team_size,omitempty"`
	ARRCrore       *float64               `json:"arr_crore,omitempty"`
	ValuationCrore *float64               `json:"valuation_pre_money_crore,omitempty"`
	RevenueModel   string                 `json:"revenue_model,omitempty"`
	Founders       []string               `json:"founders,omitempty"`
	KeyMetrics     map[string]MetricValue `json:"key_metrics,omitempty"`
}

// SectorComparison は同業他社と比較した指標です。
type SectorComparison struct {
	ARRPercentile         *float64 `json:"arr_percentile,omitempty"`
	PerformanceTier       string   `json:"performance_tier,omitempty"`
	TeamEfficiency        *float64 `json:"team_efficiency,omitempty"`
	GrowthRatePercentile  *float64 `json:"growth_rate_percentile,omitempty"`
	SectorAverageARR      *float64 `json:"sector_average_arr,omitempty"`
	SectorAverageTeamSize *float64 `json:"sector_average_team_size,omitempty"`
}

// RiskAssessment はリスク評価です。
type RiskAssessment struct {
	RiskScore       *float64 `json:"overall_risk_score,omitempty"`
	RiskLevel       string   `json:"risk_level,omitempty"`
	RedFlags        []string `json:"red_flags"`
	Recommendations []string `json:"risk_mitigation_strategies,omitempty"`
}

// UnmarshalJSON は旧フィールド名（risk_score, recommendations）も受け付けます。
func (r *RiskAssessment) UnmarshalJSON(b []byte) error {
	type plain RiskAssessment
	aux := struct {
		*plain
		LegacyRiskScore       *float64 `json:"risk_score,omitempty"`
		LegacyRecommendations []string `json:"recommendations,omitempty"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if r.RiskScore == nil {
		r.RiskScore = aux.LegacyRiskScore
	}
	if len(r.Recommendations) == 0 {
		r.Recommendations = aux.LegacyRecommendations
	}
	return nil
}

// MetricValue はkey_metricsの値で、数値またはテキストのどちらかです。
type MetricValue struct {
	Number *float64
	Text   string
}

// NumberMetric は数値のMetricValueを生成します。
func NumberMetric(v float64) MetricValue {
	return MetricValue{Number: &v}
}

// TextMetric はテキストのMetricValueを生成します。
func TextMetric(s string) MetricValue {
	return MetricValue{Text: s}
}

// UnmarshalJSON は数値・文字列・真偽値を受け付けます。それ以外はJSONテキストのまま保持します。
func (m *MetricValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*m = MetricValue{}
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = MetricValue{Text: s}
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*m = MetricValue{Number: &f}
		return nil
	}
	*m = MetricValue{Text: string(b)}
	return nil
}

// MarshalJSON は数値なら数値、それ以外は文字列として出力します。
func (m MetricValue) MarshalJSON() ([]byte, error) {
	if m.Number != nil {
		return json.Marshal(*m.Number)
	}
	if m.Text == "" {
		return []byte("null"), nil
	}
	return json.Marshal(m.Text)
}

// String は表示用の文字列を返します。値がない場合は "N/A" です。
func (m MetricValue) String() string {
	if m.Number != nil {
		return strconv.FormatFloat(*m.Number, 'f', -1, 64)
	}
	if m.Text == "" {
		return "N/A"
	}
	return m.Text
}

// GoString はテストの差分表示用です。
func (m MetricValue) GoString() string {
	return fmt.Sprintf("MetricValue(%s)", m.String())
}

// Package report は評価結果を投資レポートの表示用モデルに変換し、テキストとして出力します。
package report

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"deck_evaluator/internal/feature/evaluation/domain/entity"
)

// NotAvailable は値がない項目の表示です。
const NotAvailable = "N/A"

// Band はスコアの色分けです。
type Band string

const (
	BandGreen Band = "green"
	BandAmber Band = "amber"
	BandRed   Band = "red"
	BandNone  Band = "none"
)

// RiskBadge はリスクレベルのバッジ色です。
type RiskBadge string

const (
	RiskGreen  RiskBadge = "green"
	RiskAmber  RiskBadge = "amber"
	RiskOrange RiskBadge = "orange"
	RiskRed    RiskBadge = "red"
	RiskGray   RiskBadge = "gray"
)

// Card は指標カード1枚分の表示です。
type Card struct {
	Label string
	Value string
}

// KeyMetric はkey_metricsの1行です。
type KeyMetric struct {
	Name  string
	Value string
}

// Report は評価結果の表示用モデルです。
type Report struct {
	StartupID       string
	CompanyName     string
	Timestamp       string
	Score           int
	HasScore        bool
	ScoreLabel      string
	ScoreBand       Band
	Recommendation  string
	RiskLevel       string
	RiskBadge       RiskBadge
	Cards           []Card
	CategoryScores  []Card
	Founders        []string
	RedFlags        []string
	Recommendations []string
	KeyMetrics      []KeyMetric
	ConfidenceLevel string
}

// ClampScore は0〜100に収めて四捨五入したスコアを返します。
func ClampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

// ScoreBand は80以上を緑、60〜79を黄、60未満を赤とします。
func ScoreBand(score int) Band {
	switch {
	case score >= 80:
		return BandGreen
	case score >= 60:
		return BandAmber
	default:
		return BandRed
	}
}

// RiskColor はリスクレベルのバッジ色を返します。未知のレベルはグレーです。
func RiskColor(level string) RiskBadge {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low":
		return RiskGreen
	case "medium":
		return RiskAmber
	case "medium-high":
		return RiskOrange
	case "high":
		return RiskRed
	default:
		return RiskGray
	}
}

// Build は評価結果から表示用モデルを組み立てます。欠損値は "N/A" になります。
func Build(r *entity.EvaluationResult) Report {
	if r == nil {
		return Report{ScoreLabel: NotAvailable, ScoreBand: BandNone, RiskLevel: NotAvailable, RiskBadge: RiskGray}
	}

	rep := Report{
		StartupID:       r.StartupID,
		Timestamp:       r.Timestamp,
		Recommendation:  textOrNA(r.InvestmentRecommendation),
		RiskLevel:       textOrNA(r.RiskAssessment.RiskLevel),
		RiskBadge:       RiskColor(r.RiskAssessment.RiskLevel),
		RedFlags:        nonEmpty(r.RiskAssessment.RedFlags),
		Recommendations: nonEmpty(r.RiskAssessment.Recommendations),
		ConfidenceLevel: r.ConfidenceLevel,
		ScoreLabel:      NotAvailable,
		ScoreBand:       BandNone,
	}
	if r.InvestmentScore != nil {
		rep.Score = ClampScore(*r.InvestmentScore)
		rep.HasScore = true
		rep.ScoreLabel = strconv.Itoa(rep.Score) + "/100"
		rep.ScoreBand = ScoreBand(rep.Score)
	}

	ed := r.ExtractedData
	if ed == nil {
		ed = &entity.ExtractedData{}
	}
	sc := r.SectorComparison
	if sc == nil {
		sc = &entity.SectorComparison{}
	}

	rep.CompanyName = textOrNA(ed.CompanyName)
	rep.Founders = nonEmpty(ed.Founders)
	rep.Cards = []Card{
		{"Company", rep.CompanyName},
		{"Sector", textOrNA(ed.Sector)},
		{"Stage", textOrNA(ed.Stage)},
		{"Team Size", number(ed.TeamSize, "")},
		{"ARR", number(ed.ARRCrore, " Cr")},
		{"Valuation (pre-money)", number(ed.ValuationCrore, " Cr")},
		{"Revenue Model", textOrNA(ed.RevenueModel)},
		{"ARR Percentile", percentile(sc.ARRPercentile)},
		{"Performance Tier", textOrNA(sc.PerformanceTier)},
		{"Team Efficiency", number(sc.TeamEfficiency, "")},
		{"Growth Percentile", percentile(sc.GrowthRatePercentile)},
		{"Risk Score", number(r.OverallRiskScore(), "")},
	}

	for _, c := range []struct {
		label string
		v     *float64
	}{
		{"Financial Health", r.FinancialHealthScore},
		{"Team Quality", r.TeamQualityScore},
		{"Market Opportunity", r.MarketOpportunityScore},
		{"Product Traction", r.ProductTractionScore},
	} {
		if c.v != nil {
			rep.CategoryScores = append(rep.CategoryScores, Card{c.label, strconv.Itoa(ClampScore(*c.v)) + "/100"})
		}
	}

	if len(ed.KeyMetrics) > 0 {
		keys := make([]string, 0, len(ed.KeyMetrics))
		for k := range ed.KeyMetrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rep.KeyMetrics = append(rep.KeyMetrics, KeyMetric{Name: humanize(k), Value: ed.KeyMetrics[k].String()})
		}
	}
	return rep
}

func textOrNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return NotAvailable
	}
	return s
}

func number(v *float64, suffix string) string {
	if v == nil || math.IsNaN(*v) {
		return NotAvailable
	}
	return strconv.FormatFloat(math.Round(*v*100)/100, 'f', -1, 64) + suffix
}

func percentile(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return NotAvailable
	}
	return strconv.Itoa(int(math.Round(*v))) + "th"
}

// nonEmpty は空文字列を除いた要素を返します。すべて空ならnilです。
func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// humanize は "monthly_growth" を "Monthly Growth" に変換します。
func humanize(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	if len(words) == 0 {
		return key
	}
	return strings.Join(words, " ")
}

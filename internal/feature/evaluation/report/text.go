package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiOrange = "\x1b[38;5;208m"
	ansiGray   = "\x1b[90m"
)

var bandColors = map[Band]string{
	BandGreen: ansiGreen,
	BandAmber: ansiYellow,
	BandRed:   ansiRed,
}

var riskColors = map[RiskBadge]string{
	RiskGreen:  ansiGreen,
	RiskAmber:  ansiYellow,
	RiskOrange: ansiOrange,
	RiskRed:    ansiRed,
	RiskGray:   ansiGray,
}

// WriteText はレポートをターミナル向けのテキストで書き出します。
// colorがtrueの場合はANSIエスケープで色を付けます。
func WriteText(w io.Writer, rep Report, color bool) error {
	bw := bufio.NewWriter(w)
	paint := func(code, s string) string {
		if !color || code == "" {
			return s
		}
		return code + s + ansiReset
	}

	fmt.Fprintf(bw, "%s\n", paint(ansiBold, "Investment Report: "+rep.CompanyName))
	if rep.StartupID != "" {
		fmt.Fprintf(bw, "Startup ID: %s\n", rep.StartupID)
	}
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "Investment Score:  %s\n", paint(bandColors[rep.ScoreBand], rep.ScoreLabel))
	fmt.Fprintf(bw, "Recommendation:    %s\n", rep.Recommendation)
	fmt.Fprintf(bw, "Risk Level:        %s\n", paint(riskColors[rep.RiskBadge], rep.RiskLevel))
	if rep.ConfidenceLevel != "" {
		fmt.Fprintf(bw, "Confidence:        %s\n", rep.ConfidenceLevel)
	}

	section(bw, "Key Figures", paint)
	tw := tabwriter.NewWriter(bw, 0, 0, 2, ' ', 0)
	for _, c := range rep.Cards {
		fmt.Fprintf(tw, "  %s\t%s\n", c.Label, c.Value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(rep.CategoryScores) > 0 {
		section(bw, "Category Scores", paint)
		tw = tabwriter.NewWriter(bw, 0, 0, 2, ' ', 0)
		for _, c := range rep.CategoryScores {
			fmt.Fprintf(tw, "  %s\t%s\n", c.Label, c.Value)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(rep.Founders) > 0 {
		section(bw, "Founders", paint)
		fmt.Fprintf(bw, "  %s\n", strings.Join(rep.Founders, ", "))
	}

	if len(rep.KeyMetrics) > 0 {
		section(bw, "Key Metrics", paint)
		tw = tabwriter.NewWriter(bw, 0, 0, 2, ' ', 0)
		for _, m := range rep.KeyMetrics {
			fmt.Fprintf(tw, "  %s\t%s\n", m.Name, m.Value)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(rep.RedFlags) > 0 {
		section(bw, "Red Flags", paint)
		for _, f := range rep.RedFlags {
			fmt.Fprintf(bw, "  %s %s\n", paint(ansiRed, "!"), f)
		}
	}

	if len(rep.Recommendations) > 0 {
		section(bw, "Recommendations", paint)
		for i, r := range rep.Recommendations {
			fmt.Fprintf(bw, "  %d. %s\n", i+1, r)
		}
	}
	return bw.Flush()
}

func section(w io.Writer, title string, paint func(code, s string) string) {
	fmt.Fprintf(w, "\n%s\n", paint(ansiBold, title))
}

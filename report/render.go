// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package report

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	ErrUnknownFormat = errors.New("unknown report format")
)

// Format is the output format of a rendered report
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatText, FormatMarkdown, FormatHTML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Position is one line of the simulated portfolio as shown in a report
type Position struct {
	Name       string  `json:"scheme_name"`
	Category   string  `json:"category"`
	Invested   float64 `json:"investment_amount"`
	Value      float64 `json:"current_value"`
	ProfitLoss float64 `json:"profit_loss"`
}

// PortfolioView is the simulated portfolio section of a report
type PortfolioView struct {
	AsOf            time.Time  `json:"as_of"`
	TotalInvestment float64    `json:"total_investment"`
	CurrentValue    float64    `json:"current_value"`
	ProfitLoss      float64    `json:"profit_loss"`
	Positions       []Position `json:"positions"`
}

// Rupees formats an amount with thousands separators and two decimals
func Rupees(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	whole := fmt.Sprintf("%.2f", amount)
	intPart, frac := whole[:len(whole)-3], whole[len(whole)-3:]

	var sb strings.Builder
	for idx, ch := range intPart {
		if idx > 0 && (len(intPart)-idx)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(ch)
	}

	return sign + "₹" + sb.String() + frac
}

// Render writes rep in the requested format. portfolio may be nil.
func Render(w io.Writer, format Format, rep *Report, portfolio *PortfolioView) error {
	switch format {
	case FormatText:
		return RenderText(w, rep)
	case FormatMarkdown:
		return RenderMarkdown(w, rep, portfolio)
	case FormatHTML:
		return RenderHTML(w, rep, portfolio)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// RenderText writes the recommendations as plain text for a terminal
func RenderText(w io.Writer, rep *Report) error {
	var sb strings.Builder
	sb.WriteString("--- Mutual Fund Recommendations ---\n")
	fmt.Fprintf(&sb, "Funds analyzed: %d, meeting criteria: %d, alpha: %s\n", rep.TotalFunds, len(rep.Ranked), rep.AlphaStrategy)
	sb.WriteString("Top funds for each category:\n")

	for _, bp := range rep.Buckets {
		fmt.Fprintf(&sb, "\n%s (%.0f%% allocation)\n", bp.Bucket.Name, bp.Bucket.Weight*100)
		if len(bp.Picks) == 0 {
			sb.WriteString("  - No suitable funds found.\n")
			continue
		}
		for idx, pick := range bp.Picks {
			fmt.Fprintf(&sb, "  %d. %s\n", idx+1, pick.Name)
			fmt.Fprintf(&sb, "     - Sharpe: %.2f\n", pick.Sharpe)
			fmt.Fprintf(&sb, "     - Sortino: %.2f\n", pick.Sortino)
			fmt.Fprintf(&sb, "     - Alpha: %.2f%%\n", pick.Alpha)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// escapeCell makes s safe to place inside a markdown table cell
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// RenderMarkdown writes the recommendations, and the portfolio when present,
// as GitHub flavored markdown
func RenderMarkdown(w io.Writer, rep *Report, portfolio *PortfolioView) error {
	var sb strings.Builder

	sb.WriteString("# Mutual Fund Recommendations\n\n")
	fmt.Fprintf(&sb, "Generated %s. %d of %d funds meet the risk criteria (Sharpe > %.2f, Sortino > %.2f, max drawdown < %.0f%%, volatility < %.0f%%). Alpha strategy: `%s`, period: `%s`.\n",
		rep.GeneratedAt.Format("2006-01-02 15:04 MST"), len(rep.Ranked), rep.TotalFunds,
		rep.Criteria.MinSharpe, rep.Criteria.MinSortino, rep.Criteria.MaxDrawdown, rep.Criteria.MaxVolatility*100,
		rep.AlphaStrategy, rep.Period)

	for _, bp := range rep.Buckets {
		fmt.Fprintf(&sb, "\n## %s (%.0f%% allocation)\n\n", bp.Bucket.Name, bp.Bucket.Weight*100)
		if len(bp.Picks) == 0 {
			sb.WriteString("No suitable funds found.\n")
			continue
		}
		sb.WriteString("| # | Fund | Sharpe | Sortino | Alpha | Volatility | Max Drawdown | Score |\n")
		sb.WriteString("|---|------|-------:|--------:|------:|-----------:|-------------:|------:|\n")
		for idx, pick := range bp.Picks {
			fmt.Fprintf(&sb, "| %d | %s | %.2f | %.2f | %.2f%% | %.2f%% | %.2f%% | %.2f |\n",
				idx+1, escapeCell(pick.Name), pick.Sharpe, pick.Sortino, pick.Alpha, pick.Volatility*100, pick.MaxDrawdown, pick.Score)
		}
	}

	if portfolio != nil {
		sb.WriteString("\n# Portfolio Performance\n\n")
		if !portfolio.AsOf.IsZero() {
			fmt.Fprintf(&sb, "As of %s.\n\n", portfolio.AsOf.Format("2006-01-02"))
		}
		fmt.Fprintf(&sb, "- **Total Investment:** %s\n", Rupees(portfolio.TotalInvestment))
		fmt.Fprintf(&sb, "- **Current Value:** %s\n", Rupees(portfolio.CurrentValue))
		fmt.Fprintf(&sb, "- **Total Profit/Loss:** %s\n\n", Rupees(portfolio.ProfitLoss))
		sb.WriteString("| Fund | Category | Investment | Current Value | Profit/Loss |\n")
		sb.WriteString("|------|----------|-----------:|--------------:|------------:|\n")
		for _, pos := range portfolio.Positions {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n", escapeCell(pos.Name), escapeCell(pos.Category),
				Rupees(pos.Invested), Rupees(pos.Value), Rupees(pos.ProfitLoss))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Mutual Fund Report</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, Arial, sans-serif; margin: 0; padding: 24px; background: #121212; color: #e0e0e0; line-height: 1.6; }
.container { max-width: 960px; margin: auto; background: #1e1e1e; padding: 24px 32px; border-radius: 8px; box-shadow: 0 0 12px rgba(0, 0, 0, 0.6); }
h1, h2 { color: #bb86fc; border-bottom: 1px solid #333; padding-bottom: 8px; }
table { width: 100%; border-collapse: collapse; margin: 12px 0; }
th, td { padding: 8px 10px; border-bottom: 1px solid #333; }
th { background: #2c2c2c; color: #03dac6; }
tr:hover td { background: #262626; }
code { color: #03dac6; }
img.chart { width: 100%; border-radius: 4px; margin-top: 16px; }
</style>
</head>
<body>
<div class="container">
{{.Body}}
{{if .Chart}}<h2>Score by fund</h2>
<img class="chart" alt="fund scores" src="data:image/png;base64,{{.Chart}}">{{end}}
</div>
</body>
</html>
`))

// RenderHTML converts the markdown report to a standalone dark themed HTML page
// with an embedded score chart
func RenderHTML(w io.Writer, rep *Report, portfolio *PortfolioView) error {
	var src bytes.Buffer
	if err := RenderMarkdown(&src, rep, portfolio); err != nil {
		return err
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	var body bytes.Buffer
	if err := md.Convert(src.Bytes(), &body); err != nil {
		log.Error().Err(err).Msg("could not convert markdown report to html")
		return err
	}

	chart := ""
	if png, err := ScoreChart(rep); err != nil {
		log.Warn().Err(err).Msg("could not render score chart")
	} else if len(png) > 0 {
		chart = base64.StdEncoding.EncodeToString(png)
	}

	return pageTemplate.Execute(w, struct {
		Body  template.HTML
		Chart string
	}{
		// goldmark escapes raw HTML in the markdown source
		Body:  template.HTML(body.String()), //nolint:gosec
		Chart: chart,
	})
}

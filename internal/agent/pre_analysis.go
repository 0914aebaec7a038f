package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"reflextrader/internal/models"
)

var dollarTickerRe = regexp.MustCompile(`\$([A-Z][A-Z0-9]{0,4}(?:\.[A-Z])?)\b`)

// Tokens that look like tickers but are plain words or macro acronyms.
var tickerStopwords = map[string]bool{
	"A": true, "AN": true, "AND": true, "AS": true, "AT": true, "BY": true,
	"FOR": true, "FROM": true, "IN": true, "IS": true, "IT": true, "OF": true,
	"ON": true, "OR": true, "THE": true, "TO": true, "US": true, "USA": true,
	"UTC": true, "AI": true, "GDP": true, "CPI": true, "PPI": true,
	"PMI": true, "ETF": true,
}

// Closed vocabulary: common index/sector ETFs and mega caps that show up in
// market news without a $ prefix.
var knownMarketSymbols = []string{
	"SPY", "QQQ", "IWM", "DIA", "TLT", "GLD", "USO", "VIXY",
	"XLF", "XLK", "XLE", "XLI", "XLB", "XLV",
	"AAPL", "MSFT", "NVDA", "AMZN", "META", "TSLA", "GOOGL", "GOOG",
	"AMD", "INTC", "NFLX", "CRM", "CSCO", "JPM", "BAC", "GS",
	"WMT", "COST", "KO", "PEP", "XOM", "CVX",
}

var knownSymbolRes = buildKnownSymbolRes()

func buildKnownSymbolRes() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(knownMarketSymbols))
	for _, sym := range knownMarketSymbols {
		out[sym] = regexp.MustCompile(`\b` + regexp.QuoteMeta(sym) + `\b`)
	}
	return out
}

// ExtractSymbols 从信号文本里找 $TICKER 记号与已知市场符号，保序去重。
func ExtractSymbols(text string) []string {
	var out []string
	seen := make(map[string]bool)
	upper := strings.ToUpper(text)

	for _, match := range dollarTickerRe.FindAllStringSubmatch(upper, -1) {
		sym := strings.TrimSpace(match[1])
		if tickerStopwords[sym] || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}

	sorted := append([]string(nil), knownMarketSymbols...)
	sort.Strings(sorted)
	for _, sym := range sorted {
		if seen[sym] {
			continue
		}
		if knownSymbolRes[sym].MatchString(upper) {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

// PreAnalysisAgent 规则版预分析：按提及频率排名候选 ticker。
type PreAnalysisAgent struct {
	MaxCandidateSymbols int
}

func NewPreAnalysisAgent(maxCandidates int) *PreAnalysisAgent {
	if maxCandidates <= 0 {
		maxCandidates = 12
	}
	return &PreAnalysisAgent{MaxCandidateSymbols: maxCandidates}
}

func (a *PreAnalysisAgent) Run(_ context.Context, snapshot models.FreshMarketSnapshot) models.PreAnalysis {
	allSignals := append(append([]models.FreshSignal{}, snapshot.WebSignals...), snapshot.SocialSignals...)

	var keyDrivers []string
	for _, signal := range allSignals {
		title := strings.TrimSpace(signal.Title)
		if title == "" {
			continue
		}
		keyDrivers = append(keyDrivers, title)
		if len(keyDrivers) >= 6 {
			break
		}
	}

	counts := make(map[string]int)
	var order []string
	for _, signal := range allSignals {
		text := signal.Title + "\n" + signal.Snippet
		for _, sym := range ExtractSymbols(text) {
			if counts[sym] == 0 {
				order = append(order, sym)
			}
			counts[sym]++
		}
	}

	candidates := rankByCount(order, counts, a.MaxCandidateSymbols)
	if len(candidates) == 0 {
		candidates = []string{"SPY", "QQQ"}
	}

	var risks []string
	if len(snapshot.WebSignals) < 4 {
		risks = append(risks, "Few web signals: partial coverage risk.")
	}
	if len(snapshot.SocialSignals) == 0 {
		risks = append(risks, "No usable social signals (collector empty or placeholder).")
	}
	if len(risks) == 0 {
		risks = append(risks, "Main risk: contradictory intraday news flow.")
	}

	confidence := models.ConfidenceLow
	switch {
	case len(snapshot.WebSignals) >= 8 && len(snapshot.SocialSignals) >= 3:
		confidence = models.ConfidenceHigh
	case len(snapshot.WebSignals) >= 4:
		confidence = models.ConfidenceMedium
	}

	topDrivers := keyDrivers
	if len(topDrivers) > 3 {
		topDrivers = topDrivers[:3]
	}
	driversText := "n/a"
	if len(topDrivers) > 0 {
		driversText = strings.Join(topDrivers, ", ")
	}
	summary := fmt.Sprintf(
		"%d web signals and %d social signals aggregated. Dominant catalysts: %s.",
		len(snapshot.WebSignals), len(snapshot.SocialSignals), driversText,
	)

	return models.PreAnalysis{
		Summary:          summary,
		KeyDrivers:       keyDrivers,
		CandidateSymbols: candidates,
		Risks:            risks,
		Confidence:       confidence,
	}
}

// rankByCount sorts symbols by descending count, preserving first-seen order
// on ties, truncated to limit.
func rankByCount(order []string, counts map[string]int, limit int) []string {
	ranked := append([]string(nil), order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

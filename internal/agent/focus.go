package agent

import (
	"context"
	"fmt"
	"strings"

	"reflextrader/internal/models"
)

// FocusTraderAgent 规则版 focus 选择：按候选在全部信号中的提及次数排名。
type FocusTraderAgent struct {
	MaxFocusSymbols int
}

func NewFocusTraderAgent(maxFocus int) *FocusTraderAgent {
	if maxFocus <= 0 {
		maxFocus = 6
	}
	return &FocusTraderAgent{MaxFocusSymbols: maxFocus}
}

func (a *FocusTraderAgent) Run(_ context.Context, pre models.PreAnalysis, snapshot models.FreshMarketSnapshot) models.FocusSelection {
	allSignals := append(append([]models.FreshSignal{}, snapshot.WebSignals...), snapshot.SocialSignals...)

	counts := make(map[string]int)
	rationale := make(map[string]string)
	var order []string
	for _, candidate := range pre.CandidateSymbols {
		sym := strings.ToUpper(candidate)
		for _, signal := range allSignals {
			joined := strings.ToUpper(signal.Title + " " + signal.Snippet)
			if strings.Contains(joined, sym) {
				if counts[sym] == 0 {
					order = append(order, sym)
				}
				counts[sym]++
				rationale[sym] = fmt.Sprintf("Symbol frequently observed in fresh signals (%d mentions).", counts[sym])
			}
		}
	}

	ranked := rankByCount(order, counts, a.MaxFocusSymbols)
	if len(ranked) == 0 {
		// 没有任何提及时退回候选原始顺序
		ranked = pre.CandidateSymbols
		if len(ranked) > a.MaxFocusSymbols {
			ranked = ranked[:a.MaxFocusSymbols]
		}
		for _, sym := range ranked {
			rationale[sym] = "Fallback selection from the preliminary shortlist."
		}
	}

	var questions []string
	for _, sym := range ranked {
		questions = append(questions, fmt.Sprintf("%s: short-term momentum confirmed or just news noise?", sym))
	}
	if len(questions) == 0 {
		questions = []string{"No focus symbol: should the pipeline stay idle?"}
	}

	return models.FocusSelection{
		Symbols:           ranked,
		RationaleBySymbol: rationale,
		Questions:         questions,
	}
}

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reflextrader/internal/models"
)

func TestFocusRanksByMentions(t *testing.T) {
	pre := models.PreAnalysis{CandidateSymbols: []string{"AAPL", "NVDA"}}
	snapshot := models.FreshMarketSnapshot{
		WebSignals: []models.FreshSignal{
			{Title: "NVDA extends gains", Snippet: "NVDA above resistance"},
			{Title: "NVDA demand strong"},
			{Title: "AAPL steady"},
		},
	}
	focus := NewFocusTraderAgent(6).Run(context.Background(), pre, snapshot)
	require.NotEmpty(t, focus.Symbols)
	assert.Equal(t, "NVDA", focus.Symbols[0])
	assert.Contains(t, focus.RationaleBySymbol["NVDA"], "mentions")
	assert.Len(t, focus.Questions, len(focus.Symbols))
}

func TestFocusFallbackToCandidateOrder(t *testing.T) {
	pre := models.PreAnalysis{CandidateSymbols: []string{"SPY", "QQQ", "IWM"}}
	snapshot := models.FreshMarketSnapshot{
		WebSignals: []models.FreshSignal{{Title: "nothing relevant"}},
	}
	focus := NewFocusTraderAgent(2).Run(context.Background(), pre, snapshot)
	assert.Equal(t, []string{"SPY", "QQQ"}, focus.Symbols)
	assert.Equal(t, "Fallback selection from the preliminary shortlist.", focus.RationaleBySymbol["SPY"])
}

func TestFocusEmptyCandidates(t *testing.T) {
	focus := NewFocusTraderAgent(6).Run(context.Background(), models.PreAnalysis{}, models.FreshMarketSnapshot{})
	assert.Empty(t, focus.Symbols)
	assert.Equal(t, []string{"No focus symbol: should the pipeline stay idle?"}, focus.Questions)
}

func TestFocusLimit(t *testing.T) {
	pre := models.PreAnalysis{CandidateSymbols: []string{"A1", "B1", "C1", "D1"}}
	snapshot := models.FreshMarketSnapshot{
		WebSignals: []models.FreshSignal{{Title: "A1 B1 C1 D1 all moving"}},
	}
	focus := NewFocusTraderAgent(2).Run(context.Background(), pre, snapshot)
	assert.Len(t, focus.Symbols, 2)
}

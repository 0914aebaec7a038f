package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reflextrader/internal/models"
)

func webSignals(titles ...string) []models.FreshSignal {
	out := make([]models.FreshSignal, 0, len(titles))
	for _, title := range titles {
		out = append(out, models.FreshSignal{Source: "tavily", Title: title, URL: "https://example.com/" + title})
	}
	return out
}

func TestExtractSymbolsDollarTags(t *testing.T) {
	out := ExtractSymbols("Traders pile into $NVDA and $AMD, $NVDA leads")
	assert.Equal(t, []string{"NVDA", "AMD"}, out)
}

func TestExtractSymbolsStopwords(t *testing.T) {
	out := ExtractSymbols("$THE rally in $AI names as CPI cools, $GDP irrelevant")
	assert.Empty(t, out)
}

func TestExtractSymbolsKnownWithoutPrefix(t *testing.T) {
	out := ExtractSymbols("Nvda rallies while spy drifts sideways")
	assert.ElementsMatch(t, []string{"NVDA", "SPY"}, out)
}

func TestExtractSymbolsNoSubstringMatch(t *testing.T) {
	// GLD 不能从 "GOLDEN" 里抠出来
	out := ExtractSymbols("GOLDEN cross on the index")
	assert.NotContains(t, out, "GLD")
}

func TestPreAnalysisRanksByMentions(t *testing.T) {
	snapshot := models.FreshMarketSnapshot{
		WebSignals: webSignals(
			"$TSLA deliveries beat",
			"$TSLA margin worries persist",
			"$AAPL quiet ahead of event",
		),
	}
	pre := NewPreAnalysisAgent(12).Run(context.Background(), snapshot)
	require.NotEmpty(t, pre.CandidateSymbols)
	assert.Equal(t, "TSLA", pre.CandidateSymbols[0])
	assert.Contains(t, pre.CandidateSymbols, "AAPL")
}

func TestPreAnalysisFallbackCandidates(t *testing.T) {
	snapshot := models.FreshMarketSnapshot{
		WebSignals: webSignals("markets await the jobs report"),
	}
	pre := NewPreAnalysisAgent(12).Run(context.Background(), snapshot)
	assert.Equal(t, []string{"SPY", "QQQ"}, pre.CandidateSymbols)
}

func TestPreAnalysisConfidenceTiers(t *testing.T) {
	social := webSignals("a", "b", "c")
	for i := range social {
		social[i].Source = "social"
	}

	cases := []struct {
		name     string
		snapshot models.FreshMarketSnapshot
		want     models.Confidence
	}{
		{
			name: "high",
			snapshot: models.FreshMarketSnapshot{
				WebSignals:    webSignals("1", "2", "3", "4", "5", "6", "7", "8"),
				SocialSignals: social,
			},
			want: models.ConfidenceHigh,
		},
		{
			name:     "medium",
			snapshot: models.FreshMarketSnapshot{WebSignals: webSignals("1", "2", "3", "4")},
			want:     models.ConfidenceMedium,
		},
		{
			name:     "low",
			snapshot: models.FreshMarketSnapshot{WebSignals: webSignals("1")},
			want:     models.ConfidenceLow,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pre := NewPreAnalysisAgent(12).Run(context.Background(), tc.snapshot)
			assert.Equal(t, tc.want, pre.Confidence)
		})
	}
}

func TestPreAnalysisRisksNeverEmpty(t *testing.T) {
	pre := NewPreAnalysisAgent(12).Run(context.Background(), models.FreshMarketSnapshot{})
	assert.NotEmpty(t, pre.Risks)
	assert.NotEmpty(t, pre.Summary)
}

func TestPreAnalysisDeterministic(t *testing.T) {
	snapshot := models.FreshMarketSnapshot{
		WebSignals: webSignals("$NVDA up", "$MSFT flat", "SPY drifting"),
	}
	agent := NewPreAnalysisAgent(12)
	first := agent.Run(context.Background(), snapshot)
	second := agent.Run(context.Background(), snapshot)
	assert.Equal(t, first, second)
}

func TestPreAnalysisCandidateLimit(t *testing.T) {
	snapshot := models.FreshMarketSnapshot{
		WebSignals: webSignals("$AA $BB $CC $DD $EE rotation"),
	}
	pre := NewPreAnalysisAgent(3).Run(context.Background(), snapshot)
	assert.Len(t, pre.CandidateSymbols, 3)
}

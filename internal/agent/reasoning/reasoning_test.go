package reasoning

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reflextrader/internal/agent"
	"reflextrader/internal/history"
	"reflextrader/internal/models"
)

// fakeProvider 按脚本回放响应；err 非空时每次都失败。
type fakeProvider struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (f *fakeProvider) Chat(_ context.Context, _ string, userPrompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func emptyLogs(t *testing.T) (*history.Log, *history.Log) {
	t.Helper()
	dir := t.TempDir()
	return history.NewLog(filepath.Join(dir, "runtime.jsonl")), history.NewLog(filepath.Join(dir, "trade.jsonl"))
}

func snapshotFixture() models.FreshMarketSnapshot {
	return models.FreshMarketSnapshot{
		WebSignals: []models.FreshSignal{
			{Title: "$NVDA demand surges", URL: "https://example.com/nvda"},
		},
	}
}

func TestPreAnalysisReasonerParsesResponse(t *testing.T) {
	provider := &fakeProvider{response: `Here you go:
{"summary": "AI demand day", "key_drivers": ["nvda earnings"], "candidate_symbols": ["nvda", "amd", "nvda"],
 "risks": ["crowded trade"], "confidence": "HIGH", "follow_up_web_queries": ["NVDA guidance details", "nvda guidance details"]}`}
	runtimeLog, tradeLog := emptyLogs(t)
	reasoner := NewPreAnalysisReasoner(provider, runtimeLog, tradeLog, 15, 16000, agent.NewPreAnalysisAgent(12), 12, 3)

	pre := reasoner.Run(context.Background(), snapshotFixture())
	assert.Equal(t, "AI demand day", pre.Summary)
	assert.Equal(t, []string{"NVDA", "AMD"}, pre.CandidateSymbols)
	assert.Equal(t, models.ConfidenceHigh, pre.Confidence)
	// 大小写不同的 follow-up 去重
	assert.Equal(t, []string{"NVDA guidance details"}, reasoner.FollowUpQueries())

	trace := reasoner.LastTrace()
	require.NotNil(t, trace)
	assert.Equal(t, "pre_analysis", trace.Step)
	assert.Equal(t, models.TraceModeReasoning, trace.Mode)
	assert.Empty(t, trace.Error)
}

func TestPreAnalysisReasonerFallsBackOnProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection reset")}
	runtimeLog, tradeLog := emptyLogs(t)
	fallback := agent.NewPreAnalysisAgent(12)
	reasoner := NewPreAnalysisReasoner(provider, runtimeLog, tradeLog, 15, 16000, fallback, 12, 3)

	snapshot := snapshotFixture()
	got := reasoner.Run(context.Background(), snapshot)
	want := fallback.Run(context.Background(), snapshot)
	assert.Equal(t, want, got)
	assert.Empty(t, reasoner.FollowUpQueries())

	trace := reasoner.LastTrace()
	require.NotNil(t, trace)
	assert.Equal(t, models.TraceModeFallback, trace.Mode)
	assert.Contains(t, trace.Error, "connection reset")
}

func TestPreAnalysisReasonerFallsBackOnMalformedJSON(t *testing.T) {
	provider := &fakeProvider{response: "I cannot answer in JSON today."}
	runtimeLog, tradeLog := emptyLogs(t)
	fallback := agent.NewPreAnalysisAgent(12)
	reasoner := NewPreAnalysisReasoner(provider, runtimeLog, tradeLog, 15, 16000, fallback, 12, 3)

	snapshot := snapshotFixture()
	got := reasoner.Run(context.Background(), snapshot)
	assert.Equal(t, fallback.Run(context.Background(), snapshot), got)
	require.NotNil(t, reasoner.LastTrace())
	assert.Equal(t, models.TraceModeFallback, reasoner.LastTrace().Mode)
}

func TestPreAnalysisReasonerSchemaRejection(t *testing.T) {
	// JSON 合法但缺 required 键 -> 回退
	provider := &fakeProvider{response: `{"key_drivers": ["x"]}`}
	runtimeLog, tradeLog := emptyLogs(t)
	fallback := agent.NewPreAnalysisAgent(12)
	reasoner := NewPreAnalysisReasoner(provider, runtimeLog, tradeLog, 15, 16000, fallback, 12, 3)

	got := reasoner.Run(context.Background(), snapshotFixture())
	assert.Equal(t, fallback.Run(context.Background(), snapshotFixture()), got)
}

func TestPreAnalysisReasonerEmptyCandidatesGetDefaults(t *testing.T) {
	provider := &fakeProvider{response: `{"summary": "quiet", "candidate_symbols": []}`}
	runtimeLog, tradeLog := emptyLogs(t)
	reasoner := NewPreAnalysisReasoner(provider, runtimeLog, tradeLog, 15, 16000, agent.NewPreAnalysisAgent(12), 12, 3)

	pre := reasoner.Run(context.Background(), snapshotFixture())
	assert.Equal(t, []string{"SPY", "QQQ"}, pre.CandidateSymbols)
	assert.Equal(t, []string{"No explicit risk provided by the model."}, pre.Risks)
}

func TestFocusReasonerParsesResponse(t *testing.T) {
	provider := &fakeProvider{response: `{"symbols": ["nvda", "bogus!!"], "rationale_by_symbol": {"NVDA": "momentum leader"}, "questions": ["NVDA overextended?"]}`}
	runtimeLog, tradeLog := emptyLogs(t)
	reasoner := NewFocusReasoner(provider, runtimeLog, tradeLog, 15, 16000, agent.NewFocusTraderAgent(6), 6)

	pre := models.PreAnalysis{CandidateSymbols: []string{"NVDA", "AMD"}}
	focus := reasoner.Run(context.Background(), pre, snapshotFixture())
	assert.Equal(t, []string{"NVDA"}, focus.Symbols)
	assert.Equal(t, "momentum leader", focus.RationaleBySymbol["NVDA"])
	assert.Equal(t, []string{"NVDA overextended?"}, focus.Questions)
}

func TestFocusReasonerEmptySymbolsFallToCandidates(t *testing.T) {
	provider := &fakeProvider{response: `{"symbols": []}`}
	runtimeLog, tradeLog := emptyLogs(t)
	reasoner := NewFocusReasoner(provider, runtimeLog, tradeLog, 15, 16000, agent.NewFocusTraderAgent(6), 2)

	pre := models.PreAnalysis{CandidateSymbols: []string{"AAPL", "MSFT", "GOOGL"}}
	focus := reasoner.Run(context.Background(), pre, snapshotFixture())
	assert.Equal(t, []string{"AAPL", "MSFT"}, focus.Symbols)
	assert.Equal(t, "Symbol retained after reviewing signals and runtime constraints.", focus.RationaleBySymbol["AAPL"])
}

func TestFinalReasonerParsesOrders(t *testing.T) {
	provider := &fakeProvider{response: `{
		"action": "long",
		"symbols": ["NVDA"],
		"thesis": "demand is real",
		"risk_controls": ["small size"],
		"confidence": "medium",
		"should_execute": true,
		"orders": [
			{"symbol": "nvda", "side": "BUY", "qty": 2},
			{"symbol": "???", "side": "buy", "qty": 1},
			{"symbol": "AMD", "side": "hold", "qty": 1},
			{"symbol": "TSLA", "side": "sell", "qty": -4}
		]
	}`}
	runtimeLog, tradeLog := emptyLogs(t)
	reasoner := NewFinalReasoner(provider, runtimeLog, tradeLog, 15, 16000, agent.NewFinalTraderAgent(1), 1)

	decision := reasoner.Run(context.Background(), models.PreAnalysis{}, models.FocusSelection{Symbols: []string{"NVDA"}}, models.FinancialSnapshot{}, models.FreshMarketSnapshot{})
	assert.Equal(t, models.ActionLong, decision.Action)
	assert.True(t, decision.ShouldExecute)
	require.Len(t, decision.Orders, 1)
	assert.Equal(t, "NVDA", decision.Orders[0].Symbol)
	assert.Equal(t, "buy", decision.Orders[0].Side)
	assert.Equal(t, 2.0, decision.Orders[0].Qty)
}

func TestFinalReasonerHoldClearsOrders(t *testing.T) {
	provider := &fakeProvider{response: `{
		"action": "HOLD", "should_execute": true,
		"orders": [{"symbol": "SPY", "side": "buy", "qty": 1}]
	}`}
	runtimeLog, tradeLog := emptyLogs(t)
	reasoner := NewFinalReasoner(provider, runtimeLog, tradeLog, 15, 16000, agent.NewFinalTraderAgent(1), 1)

	decision := reasoner.Run(context.Background(), models.PreAnalysis{}, models.FocusSelection{}, models.FinancialSnapshot{}, models.FreshMarketSnapshot{})
	assert.Equal(t, models.ActionHold, decision.Action)
	assert.False(t, decision.ShouldExecute)
	assert.Empty(t, decision.Orders)
}

func TestFinalReasonerUnknownActionBecomesHold(t *testing.T) {
	provider := &fakeProvider{response: `{"action": "YOLO", "should_execute": true, "orders": [{"symbol": "SPY", "side": "buy", "qty": 1}]}`}
	runtimeLog, tradeLog := emptyLogs(t)
	reasoner := NewFinalReasoner(provider, runtimeLog, tradeLog, 15, 16000, agent.NewFinalTraderAgent(1), 1)

	decision := reasoner.Run(context.Background(), models.PreAnalysis{}, models.FocusSelection{}, models.FinancialSnapshot{}, models.FreshMarketSnapshot{})
	assert.Equal(t, models.ActionHold, decision.Action)
	assert.False(t, decision.ShouldExecute)
}

func TestFinalReasonerPromptCarriesBrokerError(t *testing.T) {
	runtimeLog, tradeLog := emptyLogs(t)
	tradeLog.AppendTrade("q", 1, models.FinalDecision{Action: models.ActionHold},
		models.ExecutionReport{Status: models.ExecStatusError, Message: "insufficient buying power"}, "")

	provider := &fakeProvider{response: `{"action": "HOLD"}`}
	reasoner := NewFinalReasoner(provider, runtimeLog, tradeLog, 15, 16000, agent.NewFinalTraderAgent(1), 1)
	reasoner.Run(context.Background(), models.PreAnalysis{}, models.FocusSelection{}, models.FinancialSnapshot{}, models.FreshMarketSnapshot{})

	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "insufficient buying power")
	assert.Contains(t, provider.prompts[0], "latest_api_error_message")
}

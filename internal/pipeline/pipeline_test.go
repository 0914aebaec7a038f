package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reflextrader/internal/agent"
	"reflextrader/internal/collector"
	"reflextrader/internal/executor"
	"reflextrader/internal/models"
)

// fakeCollector 实现基础采集；followUp 打开时同时实现补充采集能力。
type fakeCollector struct {
	snapshot     models.FreshMarketSnapshot
	err          error
	followUpSigs []models.FreshSignal
	followUpErr  error
	followUpRuns [][]string
}

func (f *fakeCollector) Collect(context.Context, string) (models.FreshMarketSnapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeCollector) CollectAdditionalWeb(_ context.Context, queries []string) (collector.CollectorResult, error) {
	f.followUpRuns = append(f.followUpRuns, queries)
	if f.followUpErr != nil {
		return collector.CollectorResult{}, f.followUpErr
	}
	return collector.CollectorResult{Signals: f.followUpSigs}, nil
}

// fakePre 固定输出，并暴露 follow-up 和 trace 两个可选能力。
type fakePre struct {
	result    models.PreAnalysis
	followUps []string
	runs      int
}

func (f *fakePre) Run(context.Context, models.FreshMarketSnapshot) models.PreAnalysis {
	f.runs++
	return f.result
}

func (f *fakePre) FollowUpQueries() []string { return f.followUps }

func (f *fakePre) LastTrace() *models.AgentTrace {
	return &models.AgentTrace{Step: "pre_analysis", Mode: models.TraceModeReasoning}
}

// fakeFinal 固定返回给定决策，用于覆盖执行分支。
type fakeFinal struct {
	decision models.FinalDecision
}

func (f *fakeFinal) Run(context.Context, models.PreAnalysis, models.FocusSelection, models.FinancialSnapshot, models.FreshMarketSnapshot) models.FinalDecision {
	return f.decision
}

type fakeFinancial struct {
	snapshot models.FinancialSnapshot
	err      error
}

func (f *fakeFinancial) Fetch(context.Context, []string) (models.FinancialSnapshot, error) {
	return f.snapshot, f.err
}

func baseSnapshot() models.FreshMarketSnapshot {
	return models.FreshMarketSnapshot{
		GeneratedAt: models.UTCNowISO(),
		WebSignals: []models.FreshSignal{
			{Title: "$SPY drifts", URL: "https://example.com/spy"},
		},
	}
}

func deterministicPipeline(coll *fakeCollector, fin *fakeFinancial) *Pipeline {
	return &Pipeline{
		Collector: coll,
		Pre:       agent.NewPreAnalysisAgent(12),
		Focus:     agent.NewFocusTraderAgent(6),
		Final:     agent.NewFinalTraderAgent(1),
		Financial: fin,
	}
}

func TestRunProducesCompleteArtifact(t *testing.T) {
	coll := &fakeCollector{snapshot: baseSnapshot()}
	fin := &fakeFinancial{snapshot: models.FinancialSnapshot{
		Source:      "static",
		SymbolsData: map[string]map[string]any{"SPY": {"change_1d_pct": 0.2}},
	}}
	pipe := deterministicPipeline(coll, fin)

	artifact, err := pipe.Run(context.Background(), "market drivers")
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.RunID)
	assert.NotEmpty(t, artifact.GeneratedAt)
	assert.Equal(t, "market drivers", artifact.Query)
	assert.NotEmpty(t, artifact.PreAnalysis.CandidateSymbols)
	assert.NotEmpty(t, artifact.FocusSelection.Symbols)
	assert.Equal(t, models.ActionHold, artifact.FinalDecision.Action)
	assert.Equal(t, models.ExecStatusSkipped, artifact.ExecutionReport.Status)
}

func TestRunFailsOnCollectorError(t *testing.T) {
	pipe := deterministicPipeline(&fakeCollector{err: errors.New("tavily down")}, &fakeFinancial{})
	_, err := pipe.Run(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection failed")
}

func TestRunFailsOnFinancialError(t *testing.T) {
	pipe := deterministicPipeline(&fakeCollector{snapshot: baseSnapshot()}, &fakeFinancial{err: errors.New("chart api 500")})
	_, err := pipe.Run(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "financial data fetch failed")
}

func TestRunFollowUpRoundEnrichesSnapshot(t *testing.T) {
	coll := &fakeCollector{
		snapshot: baseSnapshot(),
		followUpSigs: []models.FreshSignal{
			{Title: "SPY options skew", URL: "https://example.com/skew"},
			{Title: "dup", URL: "https://EXAMPLE.com/spy/"}, // 与初始信号同 URL，应去重
		},
	}
	pre := &fakePre{
		result:    models.PreAnalysis{Summary: "s", CandidateSymbols: []string{"SPY"}},
		followUps: []string{"SPY options positioning"},
	}
	pipe := &Pipeline{
		Collector: coll,
		Pre:       pre,
		Focus:     agent.NewFocusTraderAgent(6),
		Final:     agent.NewFinalTraderAgent(1),
		Financial: &fakeFinancial{snapshot: models.FinancialSnapshot{}},
	}

	artifact, err := pipe.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, pre.runs, "pre-analysis runs once more after follow-up collection")
	require.Len(t, coll.followUpRuns, 1)
	assert.Equal(t, []string{"SPY options positioning"}, coll.followUpRuns[0])
	assert.Equal(t, []string{"SPY options positioning"}, artifact.FollowUpQueries)
	assert.Len(t, artifact.FreshSnapshot.WebSignals, 2, "only the genuinely new signal is merged")

	// 两次 pre trace，第二次改名
	require.GreaterOrEqual(t, len(artifact.AgentTraces), 2)
	assert.Equal(t, "pre_analysis", artifact.AgentTraces[0].Step)
	assert.Equal(t, "pre_analysis_after_follow_up", artifact.AgentTraces[1].Step)
}

func TestRunFollowUpFailureDoesNotAbort(t *testing.T) {
	coll := &fakeCollector{snapshot: baseSnapshot(), followUpErr: errors.New("rate limited")}
	pre := &fakePre{
		result:    models.PreAnalysis{Summary: "s", CandidateSymbols: []string{"SPY"}},
		followUps: []string{"extra query"},
	}
	pipe := &Pipeline{
		Collector: coll,
		Pre:       pre,
		Focus:     agent.NewFocusTraderAgent(6),
		Final:     agent.NewFinalTraderAgent(1),
		Financial: &fakeFinancial{},
	}

	artifact, err := pipe.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 1, pre.runs)
	assert.Equal(t, []string{"extra query"}, artifact.FollowUpQueries)
}

func TestRunNoFollowUpCapability(t *testing.T) {
	// 确定性 pre 没有 follow-up 能力，collector 也不会被调用
	coll := &fakeCollector{snapshot: baseSnapshot()}
	pipe := deterministicPipeline(coll, &fakeFinancial{})
	_, err := pipe.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, coll.followUpRuns)
}

func TestRunAlwaysRoutesDecisionThroughExecutor(t *testing.T) {
	// should_execute=false 且带订单的决策也要交给执行闸门：
	// 非 live 模式下应报 dry_run 并附订单明细，而不是编排层自造 skipped。
	coll := &fakeCollector{snapshot: baseSnapshot()}
	pipe := &Pipeline{
		Collector: coll,
		Pre:       agent.NewPreAnalysisAgent(12),
		Focus:     agent.NewFocusTraderAgent(6),
		Final: &fakeFinal{decision: models.FinalDecision{
			Action:        models.ActionLong,
			Symbols:       []string{"SPY"},
			ShouldExecute: false,
			Orders:        []models.Order{{Symbol: "SPY", Side: "buy", Qty: 1}},
		}},
		Financial: &fakeFinancial{},
		Executor:  &executor.TradeExecutor{BrokerName: "alpaca", Live: false},
	}

	artifact, err := pipe.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, models.ExecStatusDryRun, artifact.ExecutionReport.Status)
	require.Len(t, artifact.ExecutionReport.Details, 1)
	assert.Equal(t, "SPY", artifact.ExecutionReport.Details[0]["symbol"])
}

func TestSaveArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "run.json")
	artifact := models.RunArtifact{
		RunID:       "abc",
		GeneratedAt: models.UTCNowISO(),
		Query:       "q",
		FinalDecision: models.FinalDecision{
			Action: models.ActionHold,
			Orders: []models.Order{},
		},
		ExecutionReport: models.ExecutionReport{Status: models.ExecStatusSkipped, Details: []map[string]any{}},
	}
	require.NoError(t, SaveArtifact(artifact, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded models.RunArtifact
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, artifact.RunID, decoded.RunID)
	assert.Equal(t, artifact.FinalDecision.Action, decoded.FinalDecision.Action)

	// 关键 JSON 字段名固定
	var asMap map[string]any
	require.NoError(t, json.Unmarshal(raw, &asMap))
	for _, key := range []string{"run_id", "generated_at", "fresh_snapshot", "pre_analysis", "focus_selection", "financial_snapshot", "final_decision", "execution_report", "web_follow_up_queries", "agent_traces"} {
		assert.Contains(t, asMap, key)
	}
}

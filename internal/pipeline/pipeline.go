package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"reflextrader/internal/agent"
	"reflextrader/internal/collector"
	"reflextrader/internal/executor"
	"reflextrader/internal/financial"
	"reflextrader/internal/logger"
	"reflextrader/internal/models"
)

// 中文说明：
// 单周期编排器：采集 -> 预分析 -> 可选补充采集 -> 二次预分析 ->
// 聚焦 -> 财务 -> 最终决策 -> 执行闸门。整个周期同步串行，
// 只有采集和财务失败会中断，三个决策阶段永不报错。

// Pipeline wires one decision cycle end to end.
type Pipeline struct {
	Collector collector.FreshDataCollector
	Pre       agent.PreAnalysisStage
	Focus     agent.FocusStage
	Final     agent.FinalStage
	Financial financial.Provider
	Executor  *executor.TradeExecutor
}

// Run executes one full cycle for the given query and returns the artifact.
// Collection and financial-data failures abort the cycle; stage failures do
// not exist at this level (stages fall back internally).
func (p *Pipeline) Run(ctx context.Context, query string) (models.RunArtifact, error) {
	started := time.Now()
	logger.Infof("pipeline: cycle started, query=%q", query)

	snapshot, err := p.Collector.Collect(ctx, query)
	if err != nil {
		return models.RunArtifact{}, fmt.Errorf("fresh data collection failed: %w", err)
	}
	logger.Infof("pipeline: collected %d web and %d social signals", len(snapshot.WebSignals), len(snapshot.SocialSignals))

	var traces []models.AgentTrace
	recordTrace := func(stage any) {
		if src, ok := stage.(agent.TraceSource); ok {
			if trace := src.LastTrace(); trace != nil {
				traces = append(traces, *trace)
			}
		}
	}

	pre := p.Pre.Run(ctx, snapshot)
	recordTrace(p.Pre)

	followUps, enriched := p.runFollowUpRound(ctx, snapshot)
	if enriched != nil {
		snapshot = *enriched
		pre = p.Pre.Run(ctx, snapshot)
		if src, ok := p.Pre.(agent.TraceSource); ok {
			if trace := src.LastTrace(); trace != nil {
				second := *trace
				second.Step = "pre_analysis_after_follow_up"
				traces = append(traces, second)
			}
		}
	}

	focus := p.Focus.Run(ctx, pre, snapshot)
	recordTrace(p.Focus)
	logger.Infof("pipeline: focus symbols: %v", focus.Symbols)

	financialSnapshot, err := p.Financial.Fetch(ctx, focus.Symbols)
	if err != nil {
		return models.RunArtifact{}, fmt.Errorf("financial data fetch failed: %w", err)
	}

	decision := p.Final.Run(ctx, pre, focus, financialSnapshot, snapshot)
	recordTrace(p.Final)
	logger.Infof("pipeline: decision action=%s symbols=%v execute=%v", decision.Action, decision.Symbols, decision.ShouldExecute)

	// 每个决策都交给执行闸门；status 的归类只发生在那一层。
	var report models.ExecutionReport
	if p.Executor != nil {
		report = p.Executor.Execute(ctx, decision)
	} else {
		report = models.ExecutionReport{
			Status:  models.ExecStatusSkipped,
			Broker:  p.brokerName(),
			Details: []map[string]any{},
			Message: "No trade executor configured.",
		}
	}
	logger.Infof("pipeline: execution status=%s (%s)", report.Status, report.Message)

	artifact := models.RunArtifact{
		RunID:             uuid.NewString(),
		GeneratedAt:       models.UTCNowISO(),
		Query:             query,
		FreshSnapshot:     snapshot,
		PreAnalysis:       pre,
		FocusSelection:    focus,
		FinancialSnapshot: financialSnapshot,
		FinalDecision:     decision,
		ExecutionReport:   report,
		FollowUpQueries:   followUps,
		AgentTraces:       traces,
	}
	logger.Infof("pipeline: cycle finished in %s", time.Since(started).Round(time.Millisecond))
	return artifact, nil
}

func (p *Pipeline) brokerName() string {
	if p.Executor != nil {
		return p.Executor.BrokerName
	}
	return "alpaca"
}

// runFollowUpRound performs at most one round of additional web collection.
// It requires both optional capabilities: the pre-analysis stage must suggest
// queries and the collector must support mid-cycle collection. Returns the
// queries (possibly empty) and, when new signals arrived, a fresh enriched
// snapshot; nil otherwise.
func (p *Pipeline) runFollowUpRound(ctx context.Context, snapshot models.FreshMarketSnapshot) ([]string, *models.FreshMarketSnapshot) {
	followSrc, ok := p.Pre.(agent.FollowUpSource)
	if !ok {
		return nil, nil
	}
	queries := followSrc.FollowUpQueries()
	if len(queries) == 0 {
		return queries, nil
	}
	additional, ok := p.Collector.(collector.AdditionalWebCollector)
	if !ok {
		logger.Debugf("pipeline: follow-up queries suggested but the collector does not support mid-cycle collection")
		return queries, nil
	}

	result, err := additional.CollectAdditionalWeb(ctx, queries)
	if err != nil {
		// 补充采集失败不影响主流程
		logger.Warnf("pipeline: additional web collection failed: %v", err)
		return queries, nil
	}
	fresh := dedupeAgainst(snapshot.WebSignals, result.Signals)
	if len(fresh) == 0 {
		logger.Infof("pipeline: follow-up collection returned no new signals")
		return queries, nil
	}

	enriched := models.FreshMarketSnapshot{
		GeneratedAt:   models.UTCNowISO(),
		WebSignals:    append(append([]models.FreshSignal{}, snapshot.WebSignals...), fresh...),
		SocialSignals: snapshot.SocialSignals,
		Notes: append(append([]string{}, snapshot.Notes...),
			fmt.Sprintf("Follow-up web collection added %d signals from %d queries.", len(fresh), len(queries))),
	}
	return queries, &enriched
}

// dedupeAgainst keeps only candidate signals whose identity key is not in
// existing. URL is the key when present; title+snippet otherwise.
func dedupeAgainst(existing, candidates []models.FreshSignal) []models.FreshSignal {
	seen := make(map[string]struct{}, len(existing))
	for _, sig := range existing {
		seen[signalKey(sig)] = struct{}{}
	}
	var fresh []models.FreshSignal
	for _, sig := range candidates {
		key := signalKey(sig)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, sig)
	}
	return fresh
}

func signalKey(sig models.FreshSignal) string {
	if sig.URL != "" {
		return collector.NormalizeSignalURL(sig.URL)
	}
	return sig.Title + "\x00" + sig.Snippet
}

// SaveArtifact writes the artifact as pretty-printed JSON, creating parent
// directories as needed.
func SaveArtifact(artifact models.RunArtifact, path string) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run artifact: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run artifact: %w", err)
	}
	return nil
}

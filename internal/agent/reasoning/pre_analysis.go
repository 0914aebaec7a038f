package reasoning

import (
	"context"
	"strings"

	"reflextrader/internal/agent"
	"reflextrader/internal/history"
	"reflextrader/internal/models"
	"reflextrader/internal/provider"
)

const preAnalysisStep = "pre_analysis"

const preAnalysisSystemPrompt = `You are a market pre-analysis agent. Respond in strict JSON.
Critical rule:
- Review the trade history.
- Identify the latest broker API error message, if any.
- State explicitly whether that history creates risk for the next order.
You may propose follow-up web queries when they would improve signal quality.`

// PreAnalysisReasoner runs pre-analysis on the remote reasoning model,
// falling back to the deterministic agent on any failure.
type PreAnalysisReasoner struct {
	base
	Fallback            agent.PreAnalysisStage
	MaxCandidateSymbols int
	MaxFollowUpQueries  int

	lastFollowUps []string
}

func NewPreAnalysisReasoner(p provider.ReasoningProvider, runtimeLog, tradeLog *history.Log, historyLimit, maxPromptChars int, fallback agent.PreAnalysisStage, maxCandidates, maxFollowUps int) *PreAnalysisReasoner {
	return &PreAnalysisReasoner{
		base: base{
			Provider:       p,
			RuntimeLog:     runtimeLog,
			TradeLog:       tradeLog,
			HistoryLimit:   historyLimit,
			MaxPromptChars: maxPromptChars,
		},
		Fallback:            fallback,
		MaxCandidateSymbols: maxCandidates,
		MaxFollowUpQueries:  maxFollowUps,
	}
}

// FollowUpQueries returns the follow-up web queries suggested by the last
// successful reasoning run. Empty after a fallback.
func (r *PreAnalysisReasoner) FollowUpQueries() []string {
	return append([]string(nil), r.lastFollowUps...)
}

func (r *PreAnalysisReasoner) Run(ctx context.Context, snapshot models.FreshMarketSnapshot) models.PreAnalysis {
	runtimeEvents, tradeEvents, latestError := r.loadHistories()

	userPrompt := r.buildUserPrompt(map[string]any{
		"task": "Market pre-analysis",
		"expected_json_schema": map[string]any{
			"summary":               "str",
			"key_drivers":           []string{"str"},
			"candidate_symbols":     []string{"str"},
			"risks":                 []string{"str"},
			"confidence":            "low|medium|high",
			"follow_up_web_queries": []string{"str"},
		},
		"mandatory_instruction":    brokerErrorInstruction,
		"latest_api_error_message": latestError,
		"runtime_events_recent":    runtimeEvents,
		"trade_events_recent":      tradeEvents,
		"fresh_snapshot": map[string]any{
			"notes":          snapshot.Notes,
			"web_signals":    signalDigest(snapshot.WebSignals),
			"social_signals": signalDigest(snapshot.SocialSignals),
		},
		"limits": map[string]any{
			"max_candidate_symbols": r.MaxCandidateSymbols,
			"max_follow_up_queries": r.MaxFollowUpQueries,
		},
	})

	response, err := r.chat(ctx, preAnalysisStep, preAnalysisSystemPrompt, userPrompt)
	if err == nil {
		var result models.PreAnalysis
		result, err = r.normalize(response)
		if err == nil {
			r.setTrace(preAnalysisStep, models.TraceModeReasoning, userPrompt, response, "")
			return result
		}
	}

	// 失败即整体放弃，交给确定性基线
	r.lastFollowUps = nil
	fallback := r.Fallback.Run(ctx, snapshot)
	r.setTrace(preAnalysisStep, models.TraceModeFallback, userPrompt, response, err.Error())
	return fallback
}

func (r *PreAnalysisReasoner) normalize(response string) (models.PreAnalysis, error) {
	obj, err := extractStageObject(response, preAnalysisSchema)
	if err != nil {
		return models.PreAnalysis{}, err
	}

	candidates := normalizeSymbolList(stringSlice(obj, "candidate_symbols"), r.MaxCandidateSymbols)
	if len(candidates) == 0 {
		candidates = []string{"SPY", "QQQ"}
	}

	risks := clampStrings(stringSlice(obj, "risks"), 8)
	if len(risks) == 0 {
		risks = []string{"No explicit risk provided by the model."}
	}

	var followUps []string
	seen := make(map[string]bool)
	for _, raw := range stringSlice(obj, "follow_up_web_queries") {
		query := strings.TrimSpace(raw)
		if query == "" {
			continue
		}
		lowered := strings.ToLower(query)
		if seen[lowered] {
			continue
		}
		seen[lowered] = true
		followUps = append(followUps, query)
		if r.MaxFollowUpQueries > 0 && len(followUps) >= r.MaxFollowUpQueries {
			break
		}
	}
	r.lastFollowUps = followUps

	summary := strings.TrimSpace(stringField(obj, "summary"))
	if summary == "" {
		summary = "Pre-analysis unavailable."
	}

	return models.PreAnalysis{
		Summary:          summary,
		KeyDrivers:       clampStrings(stringSlice(obj, "key_drivers"), 6),
		CandidateSymbols: candidates,
		Risks:            risks,
		Confidence:       models.NormalizeConfidence(stringField(obj, "confidence")),
	}, nil
}

// signalDigest 给模型看的精简信号视图（每路最多 20 条）。
func signalDigest(signals []models.FreshSignal) []map[string]string {
	out := make([]map[string]string, 0, len(signals))
	for i, s := range signals {
		if i >= 20 {
			break
		}
		out = append(out, map[string]string{
			"title":   s.Title,
			"url":     s.URL,
			"snippet": s.Snippet,
			"source":  s.Source,
		})
	}
	return out
}

package reasoning

import (
	"context"
	"fmt"
	"strings"

	"reflextrader/internal/agent"
	"reflextrader/internal/history"
	"reflextrader/internal/models"
	"reflextrader/internal/provider"
)

const focusStep = "focus_selection"

const focusSystemPrompt = `You are a focus-selection agent. Respond in strict JSON.
You must review the trade history and the latest broker API error message.
If an operational constraint is detected, limit the symbols exposed to the same risk.`

// FocusReasoner selects focus symbols on the remote reasoning model, falling
// back to the deterministic agent on any failure.
type FocusReasoner struct {
	base
	Fallback        agent.FocusStage
	MaxFocusSymbols int
}

func NewFocusReasoner(p provider.ReasoningProvider, runtimeLog, tradeLog *history.Log, historyLimit, maxPromptChars int, fallback agent.FocusStage, maxFocus int) *FocusReasoner {
	return &FocusReasoner{
		base: base{
			Provider:       p,
			RuntimeLog:     runtimeLog,
			TradeLog:       tradeLog,
			HistoryLimit:   historyLimit,
			MaxPromptChars: maxPromptChars,
		},
		Fallback:        fallback,
		MaxFocusSymbols: maxFocus,
	}
}

func (r *FocusReasoner) Run(ctx context.Context, pre models.PreAnalysis, snapshot models.FreshMarketSnapshot) models.FocusSelection {
	runtimeEvents, tradeEvents, latestError := r.loadHistories()

	userPrompt := r.buildUserPrompt(map[string]any{
		"task": "Focus symbols",
		"expected_json_schema": map[string]any{
			"symbols":             []string{"str"},
			"rationale_by_symbol": map[string]string{"SYMBOL": "str"},
			"questions":           []string{"str"},
		},
		"mandatory_instruction":    brokerErrorInstruction,
		"latest_api_error_message": latestError,
		"runtime_events_recent":    runtimeEvents,
		"trade_events_recent":      tradeEvents,
		"pre_analysis":             pre,
		"fresh_notes":              snapshot.Notes,
		"limits":                   map[string]any{"max_focus_symbols": r.MaxFocusSymbols},
	})

	response, err := r.chat(ctx, focusStep, focusSystemPrompt, userPrompt)
	if err == nil {
		var result models.FocusSelection
		result, err = r.normalize(response, pre)
		if err == nil {
			r.setTrace(focusStep, models.TraceModeReasoning, userPrompt, response, "")
			return result
		}
	}

	fallback := r.Fallback.Run(ctx, pre, snapshot)
	r.setTrace(focusStep, models.TraceModeFallback, userPrompt, response, err.Error())
	return fallback
}

func (r *FocusReasoner) normalize(response string, pre models.PreAnalysis) (models.FocusSelection, error) {
	obj, err := extractStageObject(response, focusSchema)
	if err != nil {
		return models.FocusSelection{}, err
	}

	symbols := normalizeSymbolList(stringSlice(obj, "symbols"), r.MaxFocusSymbols)
	if len(symbols) == 0 {
		symbols = normalizeSymbolList(pre.CandidateSymbols, r.MaxFocusSymbols)
	}
	if len(symbols) == 0 {
		symbols = []string{"SPY", "QQQ"}
	}

	rationale := make(map[string]string)
	if raw, ok := obj["rationale_by_symbol"].(map[string]any); ok {
		for _, sym := range symbols {
			if value, ok := raw[sym].(string); ok && strings.TrimSpace(value) != "" {
				rationale[sym] = value
			}
		}
	}
	for _, sym := range symbols {
		if _, ok := rationale[sym]; !ok {
			rationale[sym] = "Symbol retained after reviewing signals and runtime constraints."
		}
	}

	questions := clampStrings(stringSlice(obj, "questions"), 8)
	if len(questions) == 0 {
		questions = []string{fmt.Sprintf("%s: confirm the signal before ordering?", symbols[0])}
	}

	return models.FocusSelection{
		Symbols:           symbols,
		RationaleBySymbol: rationale,
		Questions:         questions,
	}, nil
}

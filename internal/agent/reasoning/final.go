package reasoning

import (
	"context"
	"strings"

	"reflextrader/internal/agent"
	"reflextrader/internal/history"
	"reflextrader/internal/models"
	"reflextrader/internal/pkg/symbol"
	"reflextrader/internal/provider"
)

const finalStep = "final_decision"

const finalSystemPrompt = `You are the final trading decision agent. Respond in strict JSON.
Obligations:
- Review the trade history.
- Check the latest broker API error message.
- Explain whether that message affects the next order, and adapt the orders.`

// FinalReasoner produces the final decision on the remote reasoning model,
// falling back to the deterministic agent on any failure. It additionally
// applies the broker-error guard before returning a reasoning result.
type FinalReasoner struct {
	base
	Fallback agent.FinalStage
	OrderQty float64
}

func NewFinalReasoner(p provider.ReasoningProvider, runtimeLog, tradeLog *history.Log, historyLimit, maxPromptChars int, fallback agent.FinalStage, orderQty float64) *FinalReasoner {
	if orderQty <= 0 {
		orderQty = 1.0
	}
	return &FinalReasoner{
		base: base{
			Provider:       p,
			RuntimeLog:     runtimeLog,
			TradeLog:       tradeLog,
			HistoryLimit:   historyLimit,
			MaxPromptChars: maxPromptChars,
		},
		Fallback: fallback,
		OrderQty: orderQty,
	}
}

func (r *FinalReasoner) Run(ctx context.Context, pre models.PreAnalysis, focus models.FocusSelection, financial models.FinancialSnapshot, snapshot models.FreshMarketSnapshot) models.FinalDecision {
	runtimeEvents, tradeEvents, latestError := r.loadHistories()

	userPrompt := r.buildUserPrompt(map[string]any{
		"task": "Final decision + orders",
		"expected_json_schema": map[string]any{
			"action":         "LONG|SHORT|HOLD",
			"symbols":        []string{"str"},
			"thesis":         "str",
			"risk_controls":  []string{"str"},
			"confidence":     "low|medium|high",
			"should_execute": "bool",
			"orders": []map[string]string{{
				"symbol":        "str",
				"side":          "buy|sell",
				"qty":           "number",
				"type":          "market",
				"time_in_force": "day",
			}},
		},
		"mandatory_instruction":    brokerErrorInstruction,
		"latest_api_error_message": latestError,
		"runtime_events_recent":    runtimeEvents,
		"trade_events_recent":      tradeEvents,
		"pre_analysis":             pre,
		"focus_selection":          focus,
		"financial_snapshot":       financial,
		"fresh_notes":              snapshot.Notes,
		"default_order_qty":        r.OrderQty,
	})

	response, err := r.chat(ctx, finalStep, finalSystemPrompt, userPrompt)
	if err == nil {
		var result models.FinalDecision
		result, err = r.normalize(response, latestError)
		if err == nil {
			r.setTrace(finalStep, models.TraceModeReasoning, userPrompt, response, "")
			return result
		}
	}

	fallback := r.Fallback.Run(ctx, pre, focus, financial, snapshot)
	r.setTrace(finalStep, models.TraceModeFallback, userPrompt, response, err.Error())
	return fallback
}

func (r *FinalReasoner) normalize(response, latestError string) (models.FinalDecision, error) {
	obj, err := extractStageObject(response, finalSchema)
	if err != nil {
		return models.FinalDecision{}, err
	}

	action := models.Action(strings.ToUpper(strings.TrimSpace(stringField(obj, "action"))))
	switch action {
	case models.ActionLong, models.ActionShort, models.ActionHold:
	default:
		action = models.ActionHold
	}

	symbols := normalizeSymbolList(stringSlice(obj, "symbols"), 0)

	var orders []models.Order
	if raw, ok := obj["orders"].([]any); ok {
		for _, item := range raw {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			sym := symbol.Normalize(stringField(entry, "symbol"))
			side := strings.ToLower(strings.TrimSpace(stringField(entry, "side")))
			if sym == "" || (side != "buy" && side != "sell") {
				continue
			}
			qty := r.OrderQty
			if v, ok := entry["qty"].(float64); ok {
				qty = v
			}
			if qty <= 0 {
				continue
			}
			orders = append(orders, models.Order{
				Symbol:      sym,
				Side:        side,
				Qty:         qty,
				Type:        "market",
				TimeInForce: "day",
			})
		}
	}

	shouldExecute, _ := obj["should_execute"].(bool)
	shouldExecute = shouldExecute && len(orders) > 0
	if action == models.ActionHold {
		shouldExecute = false
		orders = nil
	}

	riskControls := clampStrings(stringSlice(obj, "risk_controls"), 8)

	decision := models.FinalDecision{
		Action:        action,
		Symbols:       symbols,
		Thesis:        defaultText(stringField(obj, "thesis"), "Decision based on current context."),
		RiskControls:  riskControls,
		Confidence:    models.NormalizeConfidence(stringField(obj, "confidence")),
		ShouldExecute: shouldExecute,
		Orders:        orders,
	}

	decision = guardDecisionFromBrokerError(decision, latestError)
	if len(decision.RiskControls) == 0 {
		decision.RiskControls = []string{"No explicit risk control provided by the model."}
	}
	if decision.Orders == nil {
		decision.Orders = []models.Order{}
	}
	return decision, nil
}

func defaultText(raw, fallback string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fallback
	}
	return s
}

package agent

import (
	"context"
	"fmt"
	"strings"

	"reflextrader/internal/models"
)

// FinalTraderAgent 规则版最终决策：看 focus 清单 1 日平均涨跌幅。
// 均值 >= +1% 做多，<= -1% 做空，其余 HOLD。
type FinalTraderAgent struct {
	OrderQty float64
}

func NewFinalTraderAgent(orderQty float64) *FinalTraderAgent {
	if orderQty <= 0 {
		orderQty = 1.0
	}
	return &FinalTraderAgent{OrderQty: orderQty}
}

func (a *FinalTraderAgent) Run(_ context.Context, pre models.PreAnalysis, focus models.FocusSelection, financial models.FinancialSnapshot, _ models.FreshMarketSnapshot) models.FinalDecision {
	if len(focus.Symbols) == 0 {
		return models.FinalDecision{
			Action:        models.ActionHold,
			Symbols:       []string{},
			Thesis:        "No focus symbol retained: waiting is recommended.",
			RiskControls:  []string{"No execution while the shortlist is empty."},
			Confidence:    models.ConfidenceLow,
			ShouldExecute: false,
			Orders:        []models.Order{},
		}
	}

	var changes []float64
	var missing []string
	for _, sym := range focus.Symbols {
		value, ok := financial.Change1DPct(sym)
		if !ok {
			missing = append(missing, sym)
			continue
		}
		changes = append(changes, value)
	}

	if len(changes) == 0 {
		return models.FinalDecision{
			Action:        models.ActionHold,
			Symbols:       focus.Symbols,
			Thesis:        "Insufficient financial data to decide. The pipeline stays idle (HOLD).",
			RiskControls:  []string{"No order without reliable price/change metrics."},
			Confidence:    models.ConfidenceLow,
			ShouldExecute: false,
			Orders:        []models.Order{},
		}
	}

	var sum float64
	for _, v := range changes {
		sum += v
	}
	avgChange := sum / float64(len(changes))

	action := models.ActionHold
	side := ""
	confidence := models.ConfidenceLow
	switch {
	case avgChange >= 1.0:
		action = models.ActionLong
		side = "buy"
		confidence = models.ConfidenceMedium
	case avgChange <= -1.0:
		action = models.ActionShort
		side = "sell"
		confidence = models.ConfidenceMedium
	}

	missingSet := make(map[string]bool, len(missing))
	for _, sym := range missing {
		missingSet[sym] = true
	}

	orders := []models.Order{}
	if action != models.ActionHold {
		for _, sym := range focus.Symbols {
			if missingSet[sym] {
				continue
			}
			orders = append(orders, models.Order{
				Symbol:      sym,
				Side:        side,
				Qty:         a.OrderQty,
				Type:        "market",
				TimeInForce: "day",
			})
		}
	}

	thesis := fmt.Sprintf(
		"Pre-analysis: %s Mean 1D change over the shortlist: %.2f%% -> action %s.",
		pre.Summary, avgChange, action,
	)
	if len(missing) > 0 {
		thesis += fmt.Sprintf(" Symbols without usable data: %s.", strings.Join(missing, ", "))
	}

	return models.FinalDecision{
		Action:  action,
		Symbols: focus.Symbols,
		Thesis:  thesis,
		RiskControls: []string{
			"Small unit size for every order.",
			"Nothing executes on partial or inconsistent financial data.",
			"Reassess after the next wave of fresh news.",
		},
		Confidence:    confidence,
		ShouldExecute: len(orders) > 0,
		Orders:        orders,
	}
}

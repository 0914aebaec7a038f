package reasoning

import (
	"strings"

	"reflextrader/internal/models"
)

// 中文说明：
// 基于最近一次券商错误的前置防护（只作用于最终决策阶段）：
// - "insufficient buying power"：禁止执行并清空订单；
// - "not allowed to short"：剔除所有 sell 订单。
// 防护动作会追加到 risk_controls，便于追溯。

func guardDecisionFromBrokerError(decision models.FinalDecision, latestError string) models.FinalDecision {
	if strings.TrimSpace(latestError) == "" {
		return decision
	}
	lower := strings.ToLower(latestError)

	if strings.Contains(lower, "insufficient buying power") {
		decision.ShouldExecute = false
		decision.Orders = []models.Order{}
		decision.RiskControls = append(decision.RiskControls,
			"Preventive block: last run failed with 'insufficient buying power'; no new order submitted.")
	}

	if strings.Contains(lower, "not allowed to short") {
		var kept []models.Order
		for _, order := range decision.Orders {
			if strings.ToLower(order.Side) != "sell" {
				kept = append(kept, order)
			}
		}
		if len(kept) != len(decision.Orders) {
			decision.Orders = kept
			decision.ShouldExecute = len(kept) > 0
			decision.RiskControls = append(decision.RiskControls,
				"Preventive adjustment: SELL orders removed after a recent short-selling rejection.")
		}
	}

	return decision
}

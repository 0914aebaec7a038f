package agent

import (
	"context"

	"reflextrader/internal/models"
)

// 中文说明：
// 三个决策阶段的能力接口。确定性实现与推理实现可互换；
// 签名不带 error —— 任何阶段内部失败都必须在阶段边界内消化。

type PreAnalysisStage interface {
	Run(ctx context.Context, snapshot models.FreshMarketSnapshot) models.PreAnalysis
}

type FocusStage interface {
	Run(ctx context.Context, pre models.PreAnalysis, snapshot models.FreshMarketSnapshot) models.FocusSelection
}

type FinalStage interface {
	Run(ctx context.Context, pre models.PreAnalysis, focus models.FocusSelection, financial models.FinancialSnapshot, snapshot models.FreshMarketSnapshot) models.FinalDecision
}

// TraceSource is an optional stage capability: expose the trace of the most
// recent invocation. Traces are observability only.
type TraceSource interface {
	LastTrace() *models.AgentTrace
}

// FollowUpSource is an optional pre-analysis capability: suggest follow-up
// web queries after a run.
type FollowUpSource interface {
	FollowUpQueries() []string
}

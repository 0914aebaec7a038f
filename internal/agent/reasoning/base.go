package reasoning

import (
	"context"
	"encoding/json"
	"strings"

	"reflextrader/internal/history"
	"reflextrader/internal/logger"
	"reflextrader/internal/models"
	"reflextrader/internal/pkg/jsonutil"
	"reflextrader/internal/pkg/symbol"
	"reflextrader/internal/provider"
)

// 中文说明：
// 推理阶段公共底座：装配提示词（带近期运行/成交事件窗口与最近一次券商
// 错误），调用远端模型，记录 trace。单次调用内不重试 —— 下一个流水线
// 周期就是重试单位。

const defaultMaxPromptChars = 16000

type base struct {
	Provider       provider.ReasoningProvider
	RuntimeLog     *history.Log
	TradeLog       *history.Log
	HistoryLimit   int
	MaxPromptChars int

	lastTrace *models.AgentTrace
}

// LastTrace returns the trace of the most recent Run invocation.
func (b *base) LastTrace() *models.AgentTrace {
	return b.lastTrace
}

func (b *base) setTrace(step, mode, prompt, response, errText string) {
	b.lastTrace = &models.AgentTrace{
		Step:     step,
		Mode:     mode,
		Prompt:   prompt,
		Response: response,
		Error:    errText,
	}
}

func (b *base) chat(ctx context.Context, step, systemPrompt, userPrompt string) (string, error) {
	logger.LogStagePrompt(step, systemPrompt, userPrompt)
	out, err := b.Provider.Chat(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	logger.LogStageResponse(step, jsonutil.Pretty(out))
	return strings.TrimSpace(out), nil
}

// loadHistories 读取两个历史窗口并提取最近一次券商错误消息。
func (b *base) loadHistories() (runtimeEvents, tradeEvents []history.Event, latestError string) {
	runtimeEvents = b.RuntimeLog.Recent(b.HistoryLimit)
	tradeEvents = b.TradeLog.Recent(b.HistoryLimit)
	latestError = history.LatestBrokerError(tradeEvents)
	return runtimeEvents, tradeEvents, latestError
}

func (b *base) limitChars(text string) string {
	max := b.MaxPromptChars
	if max <= 0 {
		max = defaultMaxPromptChars
	}
	if len(text) <= max {
		return text
	}
	return text[:max-1] + "…"
}

// buildUserPrompt marshals the stage request document. Key order is not
// significant to the model; the mandatory broker-error instruction is.
func (b *base) buildUserPrompt(doc map[string]any) string {
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return b.limitChars(brokerErrorInstruction)
	}
	return b.limitChars(string(buf))
}

const brokerErrorInstruction = "Check the trade history, locate the latest broker API error message, " +
	"state explicitly whether it affects the next order, and adapt your output accordingly."

func normalizeSymbolList(raw []string, limit int) []string {
	return symbol.NormalizeList(raw, limit)
}

func clampStrings(raw []string, limit int) []string {
	var out []string
	for _, item := range raw {
		s := strings.TrimSpace(item)
		if s == "" {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

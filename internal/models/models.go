package models

import (
	"strings"
	"time"
)

// Action 最终决策方向。
type Action string

const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
	ActionHold  Action = "HOLD"
)

// Confidence 各阶段输出的置信度档位。
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// NormalizeConfidence coerces unknown values to low.
func NormalizeConfidence(raw string) Confidence {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(raw))); c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return c
	}
	return ConfidenceLow
}

func UTCNowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// FreshSignal 单条外部市场信号（带来源出处），采集后不可变。
type FreshSignal struct {
	Source      string         `json:"source"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Snippet     string         `json:"snippet,omitempty"`
	PublishedAt string         `json:"published_at,omitempty"`
	Score       *float64       `json:"score,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// FreshMarketSnapshot is built once per cycle. Follow-up collection produces
// a new snapshot instead of mutating this one.
type FreshMarketSnapshot struct {
	GeneratedAt   string        `json:"generated_at"`
	WebSignals    []FreshSignal `json:"web_signals"`
	SocialSignals []FreshSignal `json:"social_signals"`
	Notes         []string      `json:"notes,omitempty"`
}

// EmptySnapshot returns a snapshot with no signals and an optional note.
func EmptySnapshot(note string) FreshMarketSnapshot {
	var notes []string
	if note != "" {
		notes = []string{note}
	}
	return FreshMarketSnapshot{
		GeneratedAt:   UTCNowISO(),
		WebSignals:    []FreshSignal{},
		SocialSignals: []FreshSignal{},
		Notes:         notes,
	}
}

type PreAnalysis struct {
	Summary          string     `json:"summary"`
	KeyDrivers       []string   `json:"key_drivers"`
	CandidateSymbols []string   `json:"candidate_symbols"`
	Risks            []string   `json:"risks"`
	Confidence       Confidence `json:"confidence"`
}

type FocusSelection struct {
	Symbols           []string          `json:"symbols"`
	RationaleBySymbol map[string]string `json:"rationale_by_symbol"`
	Questions         []string          `json:"questions"`
}

type FinancialSnapshot struct {
	Source         string                    `json:"source"`
	AsOf           string                    `json:"asof"`
	SymbolsData    map[string]map[string]any `json:"symbols_data"`
	MissingSymbols []string                  `json:"missing_symbols,omitempty"`
	Notes          []string                  `json:"notes,omitempty"`
}

// Change1DPct 读取某 symbol 的 1 日涨跌幅；不可用时返回 (0, false)。
func (s FinancialSnapshot) Change1DPct(symbol string) (float64, bool) {
	data, ok := s.SymbolsData[symbol]
	if !ok {
		return 0, false
	}
	switch v := data["change_1d_pct"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Order 一笔待提交的委托。qty 必须 > 0，side 只允许 buy/sell。
type Order struct {
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Qty         float64 `json:"qty"`
	Type        string  `json:"type"`
	TimeInForce string  `json:"time_in_force"`
}

type FinalDecision struct {
	Action        Action     `json:"action"`
	Symbols       []string   `json:"symbols"`
	Thesis        string     `json:"thesis"`
	RiskControls  []string   `json:"risk_controls"`
	Confidence    Confidence `json:"confidence"`
	ShouldExecute bool       `json:"should_execute"`
	Orders        []Order    `json:"orders"`
}

// Execution report statuses.
const (
	ExecStatusSkipped   = "skipped"
	ExecStatusDryRun    = "dry_run"
	ExecStatusSubmitted = "submitted"
	ExecStatusError     = "error"
)

type ExecutionReport struct {
	Status  string           `json:"status"`
	Broker  string           `json:"broker"`
	Details []map[string]any `json:"details"`
	Message string           `json:"message,omitempty"`
}

// Trace modes.
const (
	TraceModeReasoning = "reasoning"
	TraceModeFallback  = "fallback"
)

// AgentTrace 记录一次阶段调用的可观测信息，不参与控制流。
type AgentTrace struct {
	Step     string `json:"step"`
	Mode     string `json:"mode"`
	Prompt   string `json:"prompt"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunArtifact is the single immutable output of one pipeline cycle.
type RunArtifact struct {
	RunID             string              `json:"run_id"`
	GeneratedAt       string              `json:"generated_at"`
	Query             string              `json:"query"`
	FreshSnapshot     FreshMarketSnapshot `json:"fresh_snapshot"`
	PreAnalysis       PreAnalysis         `json:"pre_analysis"`
	FocusSelection    FocusSelection      `json:"focus_selection"`
	FinancialSnapshot FinancialSnapshot   `json:"financial_snapshot"`
	FinalDecision     FinalDecision       `json:"final_decision"`
	ExecutionReport   ExecutionReport     `json:"execution_report"`
	FollowUpQueries   []string            `json:"web_follow_up_queries"`
	AgentTraces       []AgentTrace        `json:"agent_traces"`
}

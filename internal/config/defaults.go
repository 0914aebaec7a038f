package config

const (
	defaultQuery        = "S&P 500 market drivers today"
	defaultOutputDir    = "pipeline_runs"
	defaultRuntimeFile  = "runtime_history/runtime_events.jsonl"
	defaultTradeFile    = "runtime_history/trade_events.jsonl"
	defaultModel        = "grok-4-1-fast-reasoning-latest"
	defaultReasonAPIURL = "https://api.x.ai/v1"
)

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.OutputDir == "" {
		c.App.OutputDir = defaultOutputDir
	}
	if c.App.Query == "" {
		c.App.Query = defaultQuery
	}

	if c.Collector.Topic == "" {
		c.Collector.Topic = "finance"
	}
	if c.Collector.SearchDepth == "" {
		c.Collector.SearchDepth = "basic"
	}
	if c.Collector.TimeRange == "" {
		c.Collector.TimeRange = "day"
	}
	if c.Collector.MaxResults == 0 {
		c.Collector.MaxResults = 8
	}
	if c.Collector.IncludeDomains == nil {
		c.Collector.IncludeDomains = []string{
			"reuters.com", "bloomberg.com", "cnbc.com", "wsj.com", "investopedia.com",
		}
	}

	if c.Reasoning.BaseURL == "" {
		c.Reasoning.BaseURL = defaultReasonAPIURL
	}
	if c.Reasoning.Model == "" {
		c.Reasoning.Model = defaultModel
	}
	if c.Reasoning.Effort == "" {
		c.Reasoning.Effort = "high"
	}
	if c.Reasoning.MaxTokens == 0 {
		c.Reasoning.MaxTokens = 1200
	}
	if c.Reasoning.TimeoutSeconds == 0 {
		c.Reasoning.TimeoutSeconds = 120
	}
	if c.Reasoning.HistoryLimit == 0 {
		c.Reasoning.HistoryLimit = 15
	}
	if c.Reasoning.MaxPromptChars == 0 {
		c.Reasoning.MaxPromptChars = 16000
	}
	if c.Reasoning.MaxFollowUpQueries == 0 {
		c.Reasoning.MaxFollowUpQueries = 3
	}

	if c.Financial.Provider == "" {
		c.Financial.Provider = "yahoo"
	}

	if c.Trading.MaxCandidateSymbols == 0 {
		c.Trading.MaxCandidateSymbols = 12
	}
	if c.Trading.MaxFocusSymbols == 0 {
		c.Trading.MaxFocusSymbols = 6
	}
	if c.Trading.OrderQty == 0 {
		c.Trading.OrderQty = 1.0
	}

	if c.Loop.IntervalSeconds == 0 {
		c.Loop.IntervalSeconds = 300
	}

	if c.History.RuntimeFile == "" {
		c.History.RuntimeFile = defaultRuntimeFile
	}
	if c.History.TradeFile == "" {
		c.History.TradeFile = defaultTradeFile
	}
	if c.History.Limit == 0 {
		c.History.Limit = 15
	}
}

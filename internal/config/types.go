package config

import "strings"

// Config 是 reflextrader 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Collector CollectorConfig `toml:"collector"`
	Reasoning ReasoningConfig `toml:"reasoning"`
	Financial FinancialConfig `toml:"financial"`
	Trading   TradingConfig   `toml:"trading"`
	Broker    BrokerConfig    `toml:"broker"`
	Loop      LoopConfig      `toml:"loop"`
	History   HistoryConfig   `toml:"history"`
}

type AppConfig struct {
	LogLevel       string `toml:"log_level"`
	LogPath        string `toml:"log_path"`
	OutputDir      string `toml:"output_dir"`
	TranscriptPath string `toml:"transcript_path"`
	Query          string `toml:"query"`
}

// CollectorConfig 控制 fresh data 采集分支（web 搜索参数 + 本地社交缓存）。
type CollectorConfig struct {
	Topic           string   `toml:"topic"`
	SearchDepth     string   `toml:"search_depth"`
	TimeRange       string   `toml:"time_range"`
	MaxResults      int      `toml:"max_results"`
	IncludeDomains  []string `toml:"include_domains"`
	ExcludeDomains  []string `toml:"exclude_domains"`
	SocialCacheFile string   `toml:"social_cache_file"`
}

type ReasoningConfig struct {
	Enabled            bool   `toml:"enabled"`
	BaseURL            string `toml:"base_url"`
	Model              string `toml:"model"`
	Effort             string `toml:"effort"` // low | high
	MaxTokens          int    `toml:"max_tokens"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	HistoryLimit       int    `toml:"history_limit"`
	MaxPromptChars     int    `toml:"max_prompt_chars"`
	MaxFollowUpQueries int    `toml:"max_follow_up_queries"`
}

type FinancialConfig struct {
	Provider string `toml:"provider"` // yahoo | static
	MockFile string `toml:"mock_file"`
}

type TradingConfig struct {
	MaxCandidateSymbols int     `toml:"max_candidate_symbols"`
	MaxFocusSymbols     int     `toml:"max_focus_symbols"`
	OrderQty            float64 `toml:"order_qty"`
}

// BrokerConfig 描述券商接入与执行闸门。ExecuteOrders=false 时永远 dry-run。
type BrokerConfig struct {
	Paper               bool `toml:"paper"`
	ExecuteOrders       bool `toml:"execute_orders"`
	RequireConfirmation bool `toml:"require_confirmation"`
}

type LoopConfig struct {
	Enabled            bool `toml:"enabled"`
	IntervalSeconds    int  `toml:"interval_seconds"`
	StopIfMarketClosed bool `toml:"stop_if_market_closed"`
}

type HistoryConfig struct {
	RuntimeFile string `toml:"runtime_file"`
	TradeFile   string `toml:"trade_file"`
	Limit       int    `toml:"limit"`
}

// NormalizedEffort clamps the reasoning effort to the supported set.
func (r ReasoningConfig) NormalizedEffort() string {
	switch strings.ToLower(strings.TrimSpace(r.Effort)) {
	case "low":
		return "low"
	case "high":
		return "high"
	}
	return "high"
}

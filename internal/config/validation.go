package config

import (
	"fmt"
	"strings"
)

var (
	validTopics      = map[string]bool{"general": true, "news": true, "finance": true}
	validDepths      = map[string]bool{"basic": true, "advanced": true, "fast": true, "ultra-fast": true}
	validTimeRanges  = map[string]bool{"none": true, "day": true, "week": true, "month": true, "year": true, "d": true, "w": true, "m": true, "y": true}
	validFinProvider = map[string]bool{"yahoo": true, "static": true}
)

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.App.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level invalid: %q", cfg.App.LogLevel)
	}
	if !validTopics[cfg.Collector.Topic] {
		return fmt.Errorf("collector.topic must be general|news|finance, got %q", cfg.Collector.Topic)
	}
	if !validDepths[cfg.Collector.SearchDepth] {
		return fmt.Errorf("collector.search_depth invalid: %q", cfg.Collector.SearchDepth)
	}
	if !validTimeRanges[cfg.Collector.TimeRange] {
		return fmt.Errorf("collector.time_range invalid: %q", cfg.Collector.TimeRange)
	}
	if cfg.Collector.MaxResults < 0 || cfg.Collector.MaxResults > 20 {
		return fmt.Errorf("collector.max_results must be in 0..20, got %d", cfg.Collector.MaxResults)
	}
	if !validFinProvider[cfg.Financial.Provider] {
		return fmt.Errorf("financial.provider must be yahoo|static, got %q", cfg.Financial.Provider)
	}
	if cfg.Trading.MaxCandidateSymbols <= 0 {
		return fmt.Errorf("trading.max_candidate_symbols must be > 0")
	}
	if cfg.Trading.MaxFocusSymbols <= 0 {
		return fmt.Errorf("trading.max_focus_symbols must be > 0")
	}
	if cfg.Trading.OrderQty <= 0 {
		return fmt.Errorf("trading.order_qty must be > 0")
	}
	if cfg.Reasoning.MaxTokens <= 0 {
		return fmt.Errorf("reasoning.max_tokens must be > 0")
	}
	if cfg.Reasoning.HistoryLimit < 0 {
		return fmt.Errorf("reasoning.history_limit must be >= 0")
	}
	if cfg.Loop.IntervalSeconds <= 0 {
		return fmt.Errorf("loop.interval_seconds must be > 0")
	}
	return nil
}

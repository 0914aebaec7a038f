package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"reflextrader/internal/agent"
	"reflextrader/internal/agent/reasoning"
	"reflextrader/internal/brokerage"
	"reflextrader/internal/collector"
	"reflextrader/internal/config"
	"reflextrader/internal/executor"
	"reflextrader/internal/financial"
	"reflextrader/internal/history"
	"reflextrader/internal/logger"
	"reflextrader/internal/pipeline"
	"reflextrader/internal/provider"
)

func main() {
	_ = godotenv.Load()

	defaultConfig := os.Getenv("REFLEX_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	configPath := flag.String("config", defaultConfig, "path to the yaml config file")
	once := flag.Bool("once", false, "run a single cycle even if loop mode is configured")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	closeLogs, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	defer closeLogs()

	secrets := config.LoadSecrets()
	if secrets.TavilyAPIKey == "" {
		logger.Errorf("TAVILY_API_KEY is required for fresh data collection")
		os.Exit(1)
	}

	runtimeLog := history.NewLog(cfg.History.RuntimeFile)
	tradeLog := history.NewLog(cfg.History.TradeFile)

	broker, exec := buildExecutor(cfg, secrets)
	pipe := buildPipeline(cfg, secrets, runtimeLog, tradeLog, exec)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	loop := cfg.Loop.Enabled && !*once
	interval := time.Duration(cfg.Loop.IntervalSeconds) * time.Second
	cycle := 0

	for {
		cycle++

		if cfg.Loop.StopIfMarketClosed && broker != nil {
			if stop := marketClosedStop(broker, runtimeLog, cycle); stop {
				return
			}
		}

		runCycle(pipe, cfg, runtimeLog, tradeLog, cycle)

		if !loop {
			return
		}
		logger.Infof("next cycle in %s", interval)
		select {
		case <-sigCh:
			logger.Infof("shutdown signal received, stopping after cycle %d", cycle)
			return
		case <-time.After(interval):
		}
	}
}

// loadConfig loads the given file; a missing file at the default path falls
// back to built-in defaults so the binary runs out of the box.
func loadConfig(path string) (*config.Config, error) {
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		logger.Warnf("config file %s not found, using defaults", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLogging(cfg *config.Config) (func(), error) {
	logger.SetLevel(cfg.App.LogLevel)
	var closers []io.Closer

	if cfg.App.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.App.LogPath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.App.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, f))
		closers = append(closers, f)
	}

	if cfg.App.TranscriptPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.App.TranscriptPath), 0o755); err != nil {
			return nil, fmt.Errorf("create transcript directory: %w", err)
		}
		f, err := os.OpenFile(cfg.App.TranscriptPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open transcript file: %w", err)
		}
		logger.SetTranscriptWriter(f)
		closers = append(closers, f)
	}

	return func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}, nil
}

// buildExecutor assembles the brokerage client and the execution guardrail.
// The client is only created for live execution with full credentials.
func buildExecutor(cfg *config.Config, secrets config.Secrets) (brokerage.Client, *executor.TradeExecutor) {
	hasCreds := secrets.AlpacaKey != "" && secrets.AlpacaSecret != ""
	live := cfg.Broker.ExecuteOrders

	paper := cfg.Broker.Paper
	if os.Getenv("ALPACA_PAPER") != "" {
		paper = config.AlpacaPaperFromEnv()
	}

	var broker brokerage.Client
	if hasCreds {
		broker = brokerage.NewAlpacaClient(secrets.AlpacaKey, secrets.AlpacaSecret, paper)
	}
	if live && !hasCreds {
		logger.Warnf("execute_orders is on but brokerage credentials are missing, orders will fail")
	}

	return broker, &executor.TradeExecutor{
		Broker:              broker,
		BrokerName:          "alpaca",
		Live:                live,
		HasCredentials:      hasCreds,
		RequireConfirmation: cfg.Broker.RequireConfirmation,
	}
}

func buildPipeline(cfg *config.Config, secrets config.Secrets, runtimeLog, tradeLog *history.Log, exec *executor.TradeExecutor) *pipeline.Pipeline {
	web := collector.NewTavilyCollector(secrets.TavilyAPIKey, cfg.Collector)
	social := collector.NewSocialCacheCollector(cfg.Collector.SocialCacheFile)
	hub := collector.NewHub(web, social)

	var fin financial.Provider
	if cfg.Financial.Provider == "static" {
		fin = financial.NewStaticProviderFromFile(cfg.Financial.MockFile)
	} else {
		fin = financial.NewYahooProvider()
	}

	preFallback := agent.NewPreAnalysisAgent(cfg.Trading.MaxCandidateSymbols)
	focusFallback := agent.NewFocusTraderAgent(cfg.Trading.MaxFocusSymbols)
	finalFallback := agent.NewFinalTraderAgent(cfg.Trading.OrderQty)

	var pre agent.PreAnalysisStage = preFallback
	var focus agent.FocusStage = focusFallback
	var final agent.FinalStage = finalFallback

	if cfg.Reasoning.Enabled && secrets.XAIAPIKey != "" {
		chat := &provider.XAIChatClient{
			BaseURL:         cfg.Reasoning.BaseURL,
			APIKey:          secrets.XAIAPIKey,
			Model:           cfg.Reasoning.Model,
			ReasoningEffort: cfg.Reasoning.NormalizedEffort(),
			MaxTokens:       cfg.Reasoning.MaxTokens,
			Timeout:         time.Duration(cfg.Reasoning.TimeoutSeconds) * time.Second,
			Compat:          provider.NewCompatCache(),
		}
		pre = reasoning.NewPreAnalysisReasoner(chat, runtimeLog, tradeLog,
			cfg.Reasoning.HistoryLimit, cfg.Reasoning.MaxPromptChars,
			preFallback, cfg.Trading.MaxCandidateSymbols, cfg.Reasoning.MaxFollowUpQueries)
		focus = reasoning.NewFocusReasoner(chat, runtimeLog, tradeLog,
			cfg.Reasoning.HistoryLimit, cfg.Reasoning.MaxPromptChars,
			focusFallback, cfg.Trading.MaxFocusSymbols)
		final = reasoning.NewFinalReasoner(chat, runtimeLog, tradeLog,
			cfg.Reasoning.HistoryLimit, cfg.Reasoning.MaxPromptChars,
			finalFallback, cfg.Trading.OrderQty)
		logger.Infof("reasoning stages enabled, model=%s effort=%s", cfg.Reasoning.Model, cfg.Reasoning.NormalizedEffort())
	} else if cfg.Reasoning.Enabled {
		logger.Warnf("reasoning is enabled but XAI_API_KEY is missing, using deterministic stages")
	}

	return &pipeline.Pipeline{
		Collector: hub,
		Pre:       pre,
		Focus:     focus,
		Final:     final,
		Financial: fin,
		Executor:  exec,
	}
}

// marketClosedStop checks the venue clock before a cycle. On a closed market
// it records the event and asks the caller to stop; clock errors never stop.
func marketClosedStop(broker brokerage.Client, runtimeLog *history.Log, cycle int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	clock, err := broker.GetClock(ctx)
	if err != nil {
		logger.Warnf("market clock unavailable, proceeding with the cycle: %v", err)
		return false
	}
	if clock.IsOpen {
		return false
	}
	message := executor.MarketClosedMessage(clock)
	logger.Infof("%s", message)
	runtimeLog.AppendRuntime("market_closed", message, cycle)
	return true
}

func runCycle(pipe *pipeline.Pipeline, cfg *config.Config, runtimeLog, tradeLog *history.Log, cycle int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	runtimeLog.AppendRuntime("cycle_started", fmt.Sprintf("Cycle %d started for query %q.", cycle, cfg.App.Query), cycle)

	artifact, err := pipe.Run(ctx, cfg.App.Query)
	if err != nil {
		logger.Errorf("cycle %d failed: %v", cycle, err)
		runtimeLog.AppendRuntime("cycle_failed", err.Error(), cycle)
		return
	}

	artifactPath := filepath.Join(cfg.App.OutputDir,
		fmt.Sprintf("run_%s_%s.json", time.Now().UTC().Format("20060102_150405"), shortID(artifact.RunID)))
	if err := pipeline.SaveArtifact(artifact, artifactPath); err != nil {
		logger.Errorf("saving run artifact failed: %v", err)
		artifactPath = ""
	} else {
		logger.Infof("run artifact saved to %s", artifactPath)
	}

	runtimeLog.AppendRuntime("cycle_completed",
		fmt.Sprintf("Cycle %d completed: action=%s execution=%s.", cycle, artifact.FinalDecision.Action, artifact.ExecutionReport.Status), cycle)
	tradeLog.AppendTrade(cfg.App.Query, cycle, artifact.FinalDecision, artifact.ExecutionReport, artifactPath)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

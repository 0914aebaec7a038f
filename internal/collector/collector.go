package collector

import (
	"context"

	"reflextrader/internal/models"
)

// CollectorResult is one collector's batch of signals plus free-form notes.
type CollectorResult struct {
	Signals []models.FreshSignal
	Notes   []string
}

// WebCollector 网页/新闻信号采集器。
type WebCollector interface {
	Collect(ctx context.Context, query string) (CollectorResult, error)
}

// SocialCollector 社交信号采集器。
type SocialCollector interface {
	Collect(ctx context.Context, query string) (CollectorResult, error)
}

// FreshDataCollector produces one snapshot per pipeline cycle.
type FreshDataCollector interface {
	Collect(ctx context.Context, query string) (models.FreshMarketSnapshot, error)
}

// AdditionalWebCollector is an optional capability: run follow-up web queries
// mid-cycle. Discovered by type assertion in the pipeline.
type AdditionalWebCollector interface {
	CollectAdditionalWeb(ctx context.Context, queries []string) (CollectorResult, error)
}

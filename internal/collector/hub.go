package collector

import (
	"context"
	"fmt"
	"strings"

	"reflextrader/internal/models"
)

// Hub 聚合 web 与 social 两路采集，输出一份快照。
type Hub struct {
	Web    WebCollector
	Social SocialCollector
}

func NewHub(web WebCollector, social SocialCollector) *Hub {
	return &Hub{Web: web, Social: social}
}

func (h *Hub) Collect(ctx context.Context, query string) (models.FreshMarketSnapshot, error) {
	web, err := h.Web.Collect(ctx, query)
	if err != nil {
		return models.FreshMarketSnapshot{}, fmt.Errorf("web collector failed: %w", err)
	}
	social, err := h.Social.Collect(ctx, query)
	if err != nil {
		return models.FreshMarketSnapshot{}, fmt.Errorf("social collector failed: %w", err)
	}

	notes := []string{
		fmt.Sprintf("Web signals: %d", len(web.Signals)),
		fmt.Sprintf("Social signals: %d", len(social.Signals)),
	}
	notes = append(notes, web.Notes...)
	notes = append(notes, social.Notes...)

	return models.FreshMarketSnapshot{
		GeneratedAt:   models.UTCNowISO(),
		WebSignals:    web.Signals,
		SocialSignals: social.Signals,
		Notes:         notes,
	}, nil
}

// CollectAdditionalWeb runs follow-up web queries and merges their signals,
// deduplicated by normalized URL.
func (h *Hub) CollectAdditionalWeb(ctx context.Context, queries []string) (CollectorResult, error) {
	if len(queries) == 0 {
		return CollectorResult{Notes: []string{"No additional web queries requested."}}, nil
	}

	var merged []models.FreshSignal
	var notes []string
	seenURLs := make(map[string]struct{})
	executed := 0
	for _, query := range queries {
		q := strings.TrimSpace(query)
		if q == "" {
			continue
		}
		result, err := h.Web.Collect(ctx, q)
		if err != nil {
			return CollectorResult{}, fmt.Errorf("follow-up web collector failed (%q): %w", q, err)
		}
		executed++
		notes = append(notes, result.Notes...)
		for _, signal := range result.Signals {
			key := NormalizeSignalURL(signal.URL)
			if key != "" {
				if _, ok := seenURLs[key]; ok {
					continue
				}
				seenURLs[key] = struct{}{}
			}
			merged = append(merged, signal)
		}
	}

	out := CollectorResult{Signals: merged}
	out.Notes = append(out.Notes, fmt.Sprintf("Additional web queries executed: %d", executed))
	out.Notes = append(out.Notes, notes...)
	out.Notes = append(out.Notes, fmt.Sprintf("Unique additional web signals: %d", len(merged)))
	return out, nil
}

// NormalizeSignalURL 去重键：小写、去掉尾部斜杠。
func NormalizeSignalURL(raw string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(raw), "/"))
}

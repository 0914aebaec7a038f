package collector

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"reflextrader/internal/models"
)

// SocialCacheCollector serves social signals from an optional local JSON
// cache file. Without a cache file it returns nothing, with an explicit note.
// A live social feed plugs in behind the same SocialCollector interface.
type SocialCacheCollector struct {
	CacheFile string
}

func NewSocialCacheCollector(cacheFile string) *SocialCacheCollector {
	return &SocialCacheCollector{CacheFile: cacheFile}
}

func (s *SocialCacheCollector) Collect(_ context.Context, query string) (CollectorResult, error) {
	if s.CacheFile == "" {
		return CollectorResult{
			Notes: []string{"Social collector not wired to a live feed (cache placeholder active)."},
		}, nil
	}

	raw, err := os.ReadFile(s.CacheFile)
	if err != nil {
		return CollectorResult{}, fmt.Errorf("social cache file unreadable: %w", err)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsArray() {
		return CollectorResult{}, fmt.Errorf("social cache invalid: JSON array expected")
	}

	var signals []models.FreshSignal
	for _, item := range doc.Array() {
		title := strings.TrimSpace(item.Get("title").String())
		url := strings.TrimSpace(item.Get("url").String())
		if title == "" || url == "" {
			continue
		}
		signal := models.FreshSignal{
			Source:      "social_cache",
			Title:       title,
			URL:         url,
			Snippet:     strings.TrimSpace(item.Get("snippet").String()),
			PublishedAt: strings.TrimSpace(item.Get("published_at").String()),
			Metadata:    map[string]any{"query": query},
		}
		if score := item.Get("score"); score.Exists() && score.Type == gjson.Number {
			v := score.Float()
			signal.Score = &v
		}
		signals = append(signals, signal)
	}

	return CollectorResult{
		Signals: signals,
		Notes:   []string{fmt.Sprintf("Social cache loaded: %d signals from %s", len(signals), s.CacheFile)},
	}, nil
}

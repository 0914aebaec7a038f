package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"reflextrader/internal/config"
	"reflextrader/internal/models"
)

// 中文说明：
// Tavily 搜索 API 采集器，产出带出处的 web 信号。
// 响应结构松散，用 gjson 按路径取值。

const tavilyEndpoint = "https://api.tavily.com/search"

type TavilyCollector struct {
	APIKey         string
	Topic          string
	SearchDepth    string
	TimeRange      string
	MaxResults     int
	IncludeDomains []string
	ExcludeDomains []string

	endpoint   string
	httpClient *http.Client
}

func NewTavilyCollector(apiKey string, cfg config.CollectorConfig) *TavilyCollector {
	return &TavilyCollector{
		APIKey:         apiKey,
		Topic:          cfg.Topic,
		SearchDepth:    cfg.SearchDepth,
		TimeRange:      cfg.TimeRange,
		MaxResults:     cfg.MaxResults,
		IncludeDomains: cfg.IncludeDomains,
		ExcludeDomains: cfg.ExcludeDomains,
		endpoint:       tavilyEndpoint,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// SetEndpoint overrides the API endpoint, for testing.
func (t *TavilyCollector) SetEndpoint(url string) { t.endpoint = url }

// SetHTTPClient sets the HTTP client for testing.
func (t *TavilyCollector) SetHTTPClient(client *http.Client) { t.httpClient = client }

func (t *TavilyCollector) Collect(ctx context.Context, query string) (CollectorResult, error) {
	payload := map[string]any{
		"api_key":      t.APIKey,
		"query":        query,
		"topic":        t.Topic,
		"search_depth": t.SearchDepth,
		"max_results":  t.MaxResults,
	}
	if t.TimeRange != "" && t.TimeRange != "none" {
		payload["time_range"] = t.TimeRange
	}
	if len(t.IncludeDomains) > 0 {
		payload["include_domains"] = t.IncludeDomains
	}
	if len(t.ExcludeDomains) > 0 {
		payload["exclude_domains"] = t.ExcludeDomains
	}
	buf, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(buf))
	if err != nil {
		return CollectorResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return CollectorResult{}, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return CollectorResult{}, err
	}
	if resp.StatusCode/100 != 2 {
		return CollectorResult{}, fmt.Errorf("tavily: status=%d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var signals []models.FreshSignal
	for _, item := range gjson.GetBytes(raw, "results").Array() {
		title := strings.TrimSpace(item.Get("title").String())
		url := strings.TrimSpace(item.Get("url").String())
		if title == "" && url == "" {
			continue
		}
		signal := models.FreshSignal{
			Source:      "tavily",
			Title:       title,
			URL:         url,
			Snippet:     strings.TrimSpace(item.Get("content").String()),
			PublishedAt: strings.TrimSpace(item.Get("published_date").String()),
		}
		if score := item.Get("score"); score.Exists() {
			v := score.Float()
			signal.Score = &v
		}
		signals = append(signals, signal)
	}

	notes := []string{fmt.Sprintf("Tavily query %q returned %d results.", query, len(signals))}
	return CollectorResult{Signals: signals, Notes: notes}, nil
}

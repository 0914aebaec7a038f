package financial

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"reflextrader/internal/logger"
	"reflextrader/internal/models"
)

// 中文说明：
// Yahoo chart API 提供器：逐 symbol 拉取 5 天日线，计算 last_price /
// change_1d_pct / change_5d_pct。无可用数据的 symbol 进入 missing_symbols。

const yahooChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

type YahooProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		baseURL:    yahooChartBaseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// SetBaseURL overrides the chart API host, for testing.
func (y *YahooProvider) SetBaseURL(raw string) { y.baseURL = strings.TrimRight(raw, "/") }

// SetHTTPClient sets the HTTP client for testing.
func (y *YahooProvider) SetHTTPClient(client *http.Client) { y.httpClient = client }

func (y *YahooProvider) Fetch(ctx context.Context, symbols []string) (models.FinancialSnapshot, error) {
	symbolsData := make(map[string]map[string]any)
	var missing []string
	var notes []string

	for _, raw := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" {
			continue
		}
		payload, err := y.fetchSymbol(ctx, sym)
		if err != nil {
			logger.Warnf("yahoo: fetch %s failed: %v", sym, err)
			payload = map[string]any{"status": "no_data"}
		}
		if payload["status"] == "no_data" {
			missing = append(missing, sym)
		}
		symbolsData[sym] = payload
	}

	notes = append(notes, "Yahoo chart: price + 1d/5d change collected per symbol.")
	if len(missing) > 0 {
		notes = append(notes, fmt.Sprintf("Symbols without usable data: %s", strings.Join(missing, ", ")))
	}

	return models.FinancialSnapshot{
		Source:         "yahoo_chart",
		AsOf:           models.UTCNowISO(),
		SymbolsData:    symbolsData,
		MissingSymbols: missing,
		Notes:          notes,
	}, nil
}

func (y *YahooProvider) fetchSymbol(ctx context.Context, sym string) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/%s?range=5d&interval=1d", y.baseURL, url.PathEscape(sym))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; reflextrader)")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("status=%d", resp.StatusCode)
	}

	result := gjson.GetBytes(raw, "chart.result.0")
	if !result.Exists() {
		return map[string]any{"status": "no_data"}, nil
	}

	var closes []float64
	for _, v := range result.Get("indicators.quote.0.close").Array() {
		if v.Type == gjson.Number {
			closes = append(closes, v.Float())
		}
	}

	payload := map[string]any{
		"company_name": result.Get("meta.longName").String(),
		"currency":     result.Get("meta.currency").String(),
	}
	if last := result.Get("meta.regularMarketPrice"); last.Exists() {
		payload["last_price"] = last.Float()
	} else if len(closes) > 0 {
		payload["last_price"] = closes[len(closes)-1]
	}

	if len(closes) >= 2 {
		last := closes[len(closes)-1]
		prev := closes[len(closes)-2]
		if prev != 0 {
			payload["change_1d_pct"] = (last - prev) / prev * 100
		}
		first := closes[0]
		if first != 0 {
			payload["change_5d_pct"] = (last - first) / first * 100
		}
	}

	if payload["last_price"] == nil && payload["change_1d_pct"] == nil {
		return map[string]any{"status": "no_data"}, nil
	}
	payload["status"] = "ok"
	return payload, nil
}

package brokerage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// 中文说明：
// Alpaca Trading API（REST v2）客户端：账户 / 持仓 / 时钟 / 下单。
// paper 与 live 走不同域名，凭证通过 APCA 头传递。

const (
	alpacaPaperBaseURL = "https://paper-api.alpaca.markets"
	alpacaLiveBaseURL  = "https://api.alpaca.markets"
)

type AlpacaClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

func NewAlpacaClient(apiKey, apiSecret string, paper bool) *AlpacaClient {
	baseURL := alpacaLiveBaseURL
	if paper {
		baseURL = alpacaPaperBaseURL
	}
	return &AlpacaClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL overrides the API host, for testing.
func (c *AlpacaClient) SetBaseURL(raw string) {
	c.baseURL = strings.TrimRight(raw, "/")
}

// SetHTTPClient sets the HTTP client for testing.
func (c *AlpacaClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *AlpacaClient) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request failed: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		message := strings.TrimSpace(gjson.GetBytes(raw, "message").String())
		if message == "" {
			message = resp.Status
		}
		return nil, fmt.Errorf("alpaca %s %s: status=%d: %s", method, path, resp.StatusCode, message)
	}
	return raw, nil
}

func (c *AlpacaClient) GetAccount(ctx context.Context) (Account, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/v2/account", nil)
	if err != nil {
		return Account{}, err
	}
	doc := gjson.ParseBytes(raw)
	return Account{
		Status:           doc.Get("status").String(),
		Equity:           decimalField(doc, "equity"),
		Cash:             decimalField(doc, "cash"),
		BuyingPower:      decimalField(doc, "buying_power"),
		PortfolioValue:   decimalField(doc, "portfolio_value"),
		ShortingEnabled:  doc.Get("shorting_enabled").Bool(),
		DaytradeCount:    int(doc.Get("daytrade_count").Int()),
		PatternDayTrader: doc.Get("pattern_day_trader").Bool(),
	}, nil
}

func (c *AlpacaClient) GetAllPositions(ctx context.Context) ([]Position, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/v2/positions", nil)
	if err != nil {
		return nil, err
	}
	var out []Position
	for _, item := range gjson.ParseBytes(raw).Array() {
		qty := decimalField(item, "qty")
		side := strings.ToLower(item.Get("side").String())
		// Alpaca reports short qty as negative.
		out = append(out, Position{
			Symbol:        strings.ToUpper(item.Get("symbol").String()),
			Qty:           qty.Abs(),
			Side:          side,
			AvgEntryPrice: decimalField(item, "avg_entry_price"),
			MarketValue:   decimalField(item, "market_value"),
			UnrealizedPL:  decimalField(item, "unrealized_pl"),
		})
	}
	return out, nil
}

func (c *AlpacaClient) GetClock(ctx context.Context) (Clock, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/v2/clock", nil)
	if err != nil {
		return Clock{}, err
	}
	doc := gjson.ParseBytes(raw)
	return Clock{
		IsOpen:    doc.Get("is_open").Bool(),
		Timestamp: timeField(doc, "timestamp"),
		NextOpen:  timeField(doc, "next_open"),
		NextClose: timeField(doc, "next_close"),
	}, nil
}

func (c *AlpacaClient) SubmitOrder(ctx context.Context, req OrderRequest) (PlacedOrder, error) {
	payload := map[string]any{
		"symbol":        req.Symbol,
		"qty":           req.Qty.String(),
		"side":          req.Side,
		"type":          req.Type,
		"time_in_force": req.TimeInForce,
	}
	raw, err := c.doRequest(ctx, http.MethodPost, "/v2/orders", payload)
	if err != nil {
		return PlacedOrder{}, err
	}
	doc := gjson.ParseBytes(raw)
	return PlacedOrder{
		ID:     doc.Get("id").String(),
		Symbol: strings.ToUpper(doc.Get("symbol").String()),
		Side:   strings.ToLower(doc.Get("side").String()),
		Qty:    decimalField(doc, "qty"),
		Status: doc.Get("status").String(),
	}, nil
}

func decimalField(doc gjson.Result, key string) decimal.Decimal {
	value := strings.TrimSpace(doc.Get(key).String())
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func timeField(doc gjson.Result, key string) time.Time {
	value := strings.TrimSpace(doc.Get(key).String())
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

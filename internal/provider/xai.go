package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reflextrader/internal/logger"
)

// 中文说明：
// XAIChatClient：兼容 OpenAI 风格聊天补全接口（/chat/completions）的 xAI 客户端。
// 若模型拒绝 reasoning_effort 参数，则登记到 CompatCache 并立刻降级重发一次；
// 后续调用直接省略该参数。

type XAIChatClient struct {
	BaseURL         string
	APIKey          string
	Model           string
	ReasoningEffort string
	MaxTokens       int
	Timeout         time.Duration
	Compat          *CompatCache

	httpClient *http.Client
}

// SetHTTPClient sets the HTTP client for testing.
func (c *XAIChatClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *XAIChatClient) endpoint() string {
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "https://api.x.ai/v1"
	}
	// 容错：配置里把完整路径也写进来时不重复追加
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func (c *XAIChatClient) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	c.httpClient = &http.Client{Timeout: timeout}
	return c.httpClient
}

func (c *XAIChatClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	withEffort := c.ReasoningEffort != "" && c.Compat.SupportsReasoningEffort(c.Model)
	out, err := c.call(ctx, systemPrompt, userPrompt, withEffort)
	if err != nil && withEffort && c.Compat.RegisterIfUnsupported(c.Model, err) {
		logger.Warnf("reasoning model %s rejects reasoning_effort, retrying without it", c.Model)
		return c.call(ctx, systemPrompt, userPrompt, false)
	}
	return out, err
}

func (c *XAIChatClient) call(ctx context.Context, systemPrompt, userPrompt string, withEffort bool) (string, error) {
	messages := []map[string]string{}
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})

	body := map[string]any{"model": c.Model, "messages": messages}
	if c.MaxTokens > 0 {
		body["max_tokens"] = c.MaxTokens
	}
	if withEffort {
		body["reasoning_effort"] = c.ReasoningEffort
	}
	buf, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	logger.Debugf("reasoning request: POST %s model=%s effort=%v", c.endpoint(), c.Model, withEffort)

	resp, err := c.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		message := strings.TrimSpace(eresp.Error.Message)
		if message == "" {
			message = resp.Status
		}
		return "", fmt.Errorf("status=%d: %s", resp.StatusCode, message)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}

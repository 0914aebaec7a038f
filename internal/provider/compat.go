package provider

import (
	"strings"
	"sync"
)

// CompatCache 记录 "某模型不支持 reasoning_effort 参数" 的事实。
// 生命周期：进程启动时为空，首次失败时登记，永不清除。
// 作为可注入依赖而非全局变量，便于测试隔离。
type CompatCache struct {
	mu     sync.Mutex
	models map[string]bool
}

func NewCompatCache() *CompatCache {
	return &CompatCache{models: make(map[string]bool)}
}

func (c *CompatCache) key(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}

// SupportsReasoningEffort reports whether the model is not yet known to
// reject the reasoning_effort parameter.
func (c *CompatCache) SupportsReasoningEffort(model string) bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.models[c.key(model)]
}

// RegisterIfUnsupported inspects err; when it indicates the model rejects
// reasoning_effort, the model is recorded and true is returned.
func (c *CompatCache) RegisterIfUnsupported(model string, err error) bool {
	if c == nil || err == nil {
		return false
	}
	if !isReasoningEffortUnsupported(err) {
		return false
	}
	key := c.key(model)
	if key == "" {
		return true
	}
	c.mu.Lock()
	c.models[key] = true
	c.mu.Unlock()
	return true
}

func isReasoningEffortUnsupported(err error) bool {
	message := strings.ToLower(err.Error())
	if !strings.Contains(message, "does not support parameter") &&
		!strings.Contains(message, "unsupported parameter") {
		return false
	}
	return strings.Contains(message, "reasoning_effort") ||
		strings.Contains(message, "reasoning effort") ||
		strings.Contains(message, "reasoningeffort")
}

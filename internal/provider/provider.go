package provider

import "context"

// ReasoningProvider 远端推理接口：输入 system/user 提示词，返回模型文本。
type ReasoningProvider interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

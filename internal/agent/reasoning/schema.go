package reasoning

import (
	"encoding/json"
	"fmt"

	"reflextrader/internal/pkg/jsonutil"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// 中文说明：
// 每个阶段一份 JSON Schema，只约束必备键与粗粒度类型。
// 通过 schema 的对象再走逐字段归一化；没通过则视为解析失败、触发回退。

var preAnalysisSchema = jsonschema.MustCompileString("pre_analysis.json", `{
	"type": "object",
	"required": ["summary", "candidate_symbols"],
	"properties": {
		"summary": {"type": "string"},
		"key_drivers": {"type": "array"},
		"candidate_symbols": {"type": "array"},
		"risks": {"type": "array"},
		"follow_up_web_queries": {"type": "array"}
	}
}`)

var focusSchema = jsonschema.MustCompileString("focus_selection.json", `{
	"type": "object",
	"required": ["symbols"],
	"properties": {
		"symbols": {"type": "array"},
		"rationale_by_symbol": {"type": "object"},
		"questions": {"type": "array"}
	}
}`)

var finalSchema = jsonschema.MustCompileString("final_decision.json", `{
	"type": "object",
	"required": ["action"],
	"properties": {
		"action": {"type": "string"},
		"symbols": {"type": "array"},
		"thesis": {"type": "string"},
		"risk_controls": {"type": "array"},
		"orders": {"type": "array"}
	}
}`)

// extractStageObject pulls the first JSON object carrying the stage's
// required keys out of a model response, then checks it against the schema.
// Requiring the keys up front skips preamble objects the model sometimes
// emits before the real payload.
func extractStageObject(raw string, schema *jsonschema.Schema) (map[string]any, error) {
	block, ok := jsonutil.ExtractObject(raw, schema.Required...)
	if !ok {
		return nil, fmt.Errorf("no JSON object with keys %v found in model response", schema.Required)
	}
	var doc any
	if err := json.Unmarshal([]byte(block), &doc); err != nil {
		return nil, fmt.Errorf("decoding model JSON failed: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("model JSON rejected by schema: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("model JSON is not an object")
	}
	return obj, nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func stringSlice(obj map[string]any, key string) []string {
	raw, _ := obj[key].([]any)
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

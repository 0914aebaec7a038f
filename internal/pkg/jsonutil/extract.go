package jsonutil

import (
	"encoding/json"
	"strings"
)

const codeFence = "```"

// ExtractObject returns the first syntactically well-formed JSON object found
// in raw that carries every key in required at its top level (no keys matches
// any object). The scan is brace-depth based and treats quoted-string contents
// as opaque, so braces inside strings never unbalance it. Candidates that do
// not parse as a JSON object are skipped and the scan continues.
func ExtractObject(raw string, required ...string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := stripFence(raw); ok {
		if out, ok := scanObjects(block, required); ok {
			return out, true
		}
	}
	return scanObjects(raw, required)
}

func stripFence(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	if idx := strings.Index(block, "\n"); idx != -1 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.ContainsAny(first, "{[") {
			block = block[idx+1:]
		}
	}
	block = strings.TrimSpace(block)
	if block == "" {
		return "", false
	}
	return block, true
}

func scanObjects(raw string, required []string) (string, bool) {
	i := 0
	for i < len(raw) {
		start := strings.Index(raw[i:], "{")
		if start == -1 {
			return "", false
		}
		start += i
		candidate, end, ok := balancedObject(raw, start)
		if !ok {
			return "", false
		}
		if obj, valid := parseObject(candidate); valid && hasKeys(obj, required) {
			return candidate, true
		}
		i = end + 1
	}
	return "", false
}

func balancedObject(raw string, start int) (string, int, bool) {
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw[start : i+1]), i, true
			}
		}
	}
	return "", -1, false
}

func parseObject(candidate string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func hasKeys(obj map[string]any, required []string) bool {
	for _, key := range required {
		if _, ok := obj[key]; !ok {
			return false
		}
	}
	return true
}

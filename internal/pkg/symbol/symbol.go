package symbol

import (
	"regexp"
	"strings"
)

// US equity tickers: uppercase, leading letter, optional digits and a single
// dot segment (BRK.B), max 10 chars.
var usEquityRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,9}$|^[A-Z][A-Z0-9]{0,7}\.[A-Z]$`)

// Normalize uppercases and validates a US equity ticker.
// Returns "" when the token is not a plausible ticker.
func Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" || len(s) > 10 {
		return ""
	}
	if !usEquityRe.MatchString(s) {
		return ""
	}
	return s
}

// NormalizeList 归一化并去重，保序；非法 ticker 被丢弃。
// limit<=0 表示不截断。
func NormalizeList(symbols []string, limit int) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Normalize(s)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

package history

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"reflextrader/internal/logger"
	"reflextrader/internal/models"
)

// 中文说明：
// 追加式 JSONL 历史日志（运行事件 + 成交事件）。
// 单写者、无并发访问；写入失败只告警，绝不向交易流程抛错。

// Event is one JSONL line. Exactly one of Message or the decision pair is
// populated depending on the log it came from.
type Event map[string]any

// Log is an append-only JSONL file of history events.
type Log struct {
	Path string
}

func NewLog(path string) *Log {
	return &Log{Path: path}
}

func (l *Log) append(event Event) {
	if l == nil || l.Path == "" {
		return
	}
	event["timestamp_utc"] = models.UTCNowISO()
	line, err := json.Marshal(event)
	if err != nil {
		logger.Warnf("history: marshal event failed: %v", err)
		return
	}
	if dir := filepath.Dir(l.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warnf("history: mkdir %s failed: %v", dir, err)
			return
		}
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warnf("history: open %s failed: %v", l.Path, err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		logger.Warnf("history: write %s failed: %v", l.Path, err)
	}
}

// AppendRuntime 记录一条运行事件（cycle<0 表示无周期号）。
func (l *Log) AppendRuntime(eventType, message string, cycle int) {
	event := Event{
		"event_type": eventType,
		"message":    message,
	}
	if cycle >= 0 {
		event["cycle"] = cycle
	}
	l.append(event)
}

// AppendTrade records a completed decision/execution pair.
func (l *Log) AppendTrade(query string, cycle int, decision models.FinalDecision, report models.ExecutionReport, artifactPath string) {
	event := Event{
		"query":            query,
		"final_decision":   decision,
		"execution_report": report,
	}
	if cycle >= 0 {
		event["cycle"] = cycle
	}
	if artifactPath != "" {
		event["artifact_path"] = artifactPath
	}
	l.append(event)
}

// Recent returns up to limit most recent events, oldest first. Blank and
// malformed lines are skipped.
func (l *Log) Recent(limit int) []Event {
	if l == nil || limit <= 0 {
		return nil
	}
	f, err := os.Open(l.Path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var parsed []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var item Event
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			continue
		}
		parsed = append(parsed, item)
	}
	if len(parsed) <= limit {
		return parsed
	}
	return parsed[len(parsed)-limit:]
}

// LatestBrokerError scans trade events newest-first for an execution report
// with status "error" and returns its message.
func LatestBrokerError(events []Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		report, ok := events[i]["execution_report"].(map[string]any)
		if !ok {
			continue
		}
		status, _ := report["status"].(string)
		if strings.ToLower(status) != models.ExecStatusError {
			continue
		}
		message, _ := report["message"].(string)
		message = strings.TrimSpace(message)
		if message != "" {
			return message
		}
	}
	return ""
}

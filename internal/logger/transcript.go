package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

// 中文说明：
// 推理调用转写日志（system/user 提示词与模型原始输出）。
// 纯观测用途：写入失败不影响交易流程。

var (
	transcriptMu  sync.Mutex
	transcriptLog *log.Logger
)

// SetTranscriptWriter enables reasoning transcript dumps. Pass nil to disable.
func SetTranscriptWriter(w io.Writer) {
	transcriptMu.Lock()
	defer transcriptMu.Unlock()
	if w == nil {
		transcriptLog = nil
		return
	}
	transcriptLog = log.New(w, "", log.LstdFlags)
}

func writeTranscript(kind, step string, sections map[string]string, order []string) {
	transcriptMu.Lock()
	tl := transcriptLog
	transcriptMu.Unlock()
	if tl == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[REASONING][")
	b.WriteString(kind)
	b.WriteString("][")
	b.WriteString(step)
	b.WriteString("]\n")
	for _, title := range order {
		body := sections[title]
		if strings.TrimSpace(body) == "" {
			continue
		}
		b.WriteString("--- ")
		b.WriteString(title)
		b.WriteString(" ---\n")
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	tl.Print(b.String())
}

func LogStagePrompt(step, systemPrompt, userPrompt string) {
	writeTranscript("request", step,
		map[string]string{"SYSTEM": systemPrompt, "USER": userPrompt},
		[]string{"SYSTEM", "USER"})
}

func LogStageResponse(step, raw string) {
	writeTranscript("response", step,
		map[string]string{"RAW": raw},
		[]string{"RAW"})
}

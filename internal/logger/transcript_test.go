package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscriptDisabledByDefault(t *testing.T) {
	SetTranscriptWriter(nil)
	LogStagePrompt("pre_analysis", "sys", "user")
	LogStageResponse("pre_analysis", "raw")
}

func TestTranscriptWritesSections(t *testing.T) {
	var buf bytes.Buffer
	SetTranscriptWriter(&buf)
	defer SetTranscriptWriter(nil)

	LogStagePrompt("final_decision", "you are the final agent", `{"task": "decide"}`)
	out := buf.String()
	assert.Contains(t, out, "[REASONING][request][final_decision]")
	assert.Contains(t, out, "--- SYSTEM ---")
	assert.Contains(t, out, "you are the final agent")
	assert.Contains(t, out, "--- USER ---")

	buf.Reset()
	LogStageResponse("final_decision", `{"action": "HOLD"}`)
	out = buf.String()
	assert.Contains(t, out, "[REASONING][response][final_decision]")
	assert.Contains(t, out, "--- RAW ---")
}

func TestTranscriptSkipsEmptySections(t *testing.T) {
	var buf bytes.Buffer
	SetTranscriptWriter(&buf)
	defer SetTranscriptWriter(nil)

	LogStagePrompt("focus_selection", "", "user prompt only")
	out := buf.String()
	assert.NotContains(t, out, "--- SYSTEM ---")
	assert.Contains(t, out, "--- USER ---")
}

package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)
	defer SetLevel("info")

	SetLevel("info")
	Debugf("hidden %d", 1)
	Infof("visible %d", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible 2")

	SetLevel("debug")
	Debugf("debug shown")
	assert.Contains(t, buf.String(), "debug shown")
}

func TestSetLevelUnknownFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)
	defer SetLevel("info")

	SetLevel("verbose")
	Debugf("still hidden")
	Warnf("warned")
	assert.NotContains(t, buf.String(), "still hidden")
	assert.Contains(t, buf.String(), "warned")
}

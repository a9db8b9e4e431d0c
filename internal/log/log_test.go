package log

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUseLoggerRestores(t *testing.T) {
	rl := &RecordLogger{}
	restore := UseLogger(rl)
	Info("hello %d", 1)
	assert.Equal(t, []string{"INFO: hello 1"}, rl.Logs())
	restore()
	assert.NotEqual(t, rl, active())
}

func TestLevelGating(t *testing.T) {
	rl := &RecordLogger{}
	defer UseLogger(rl)()

	defer func(old Level) { SetLevel(old) }(levelThreshold)

	SetLevel(LevelWarn)
	Debug("should not appear")
	Info("should not appear either")
	assert.Len(t, rl.Logs(), 0)

	Warn("warn %s", "msg")
	assert.Equal(t, []string{"WARN: warn msg"}, rl.Logs())

	SetLevel(LevelDebug)
	assert.True(t, DebugEnabled())
	Debug("now visible")
	assert.Contains(t, rl.Logs(), "DEBUG: now visible")
}

func TestErrorBufferingAndFlush(t *testing.T) {
	rl := &RecordLogger{}
	defer UseLogger(rl)()
	defer func(old time.Duration) { errrate = old }(errrate)
	errrate = time.Hour

	Error("a message %d", 1)
	Error("a message %d", 2)
	Error("a message %d", 3)
	Error("b message")
	assert.Len(t, rl.Logs(), 0, "errors are buffered until Flush")

	Flush()
	logs := rl.Logs()
	assert.Len(t, logs, 2)
	assert.Contains(t, logs, "ERROR: a message 1, 2 additional messages skipped")
	assert.Contains(t, logs, "ERROR: b message")

	Flush()
	assert.Len(t, rl.Logs(), 2, "a second flush with nothing pending logs nothing new")
}

func TestErrorInstant(t *testing.T) {
	rl := &RecordLogger{}
	defer UseLogger(rl)()
	defer func(old time.Duration) { errrate = old }(errrate)
	errrate = 0

	Error("immediate %d", 4)
	assert.Equal(t, []string{"ERROR: immediate 4"}, rl.Logs())
}

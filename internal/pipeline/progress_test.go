package pipeline

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "detect ").WithWidth(10)
	cb.OnStart(2)
	cb.OnError(0, errors.New("x"))
	cb.OnProgress(1, 2)
	cb.OnProgress(2, 2)
	cb.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "detect 0/2")
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, "(1 failed)")
	assert.Contains(t, out, "done in")
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	cb := NewLogProgressCallback(logger, slog.LevelInfo).WithInterval(2)
	cb.OnStart(3)
	cb.OnProgress(1, 3)
	cb.OnProgress(2, 3)
	cb.OnProgress(3, 3)
	cb.OnError(1, errors.New("bad"))
	cb.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "batch started")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("batch progress")))
	assert.Contains(t, out, "batch item failed")
	assert.Contains(t, out, "batch completed")
}

func TestMultiProgressCallback(t *testing.T) {
	a, b := &recordingProgress{}, &recordingProgress{}
	m := MultiProgressCallback{a, b, NoOpProgressCallback{}}
	m.OnStart(1)
	m.OnProgress(1, 1)
	m.OnError(0, errors.New("x"))
	m.OnComplete()
	for _, r := range []*recordingProgress{a, b} {
		assert.Equal(t, int32(1), r.started.Load())
		assert.Equal(t, int32(1), r.progress.Load())
		assert.Equal(t, int32(1), r.errors.Load())
		assert.Equal(t, int32(1), r.completed.Load())
	}
}

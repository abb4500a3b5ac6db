package commons

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return NewLogger(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf).WithStore("overworld").WithChunk("region_0_0")

	l.Info("loaded")

	out := buf.String()
	assert.Contains(t, out, "store=overworld")
	assert.Contains(t, out, "chunk=region_0_0")
	assert.Contains(t, out, "loaded")
}

func TestLogger_LogSave(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.LogSave(context.Background(), "region_1_2", 512, nil)
	assert.Contains(t, buf.String(), "save completed")
	assert.Contains(t, buf.String(), "bytes=512")

	buf.Reset()
	l.LogSave(context.Background(), "region_1_2", 0, errors.New("disk gone"))
	assert.Contains(t, buf.String(), "save failed")
	assert.Contains(t, buf.String(), "disk gone")
}

func TestLineWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewLineWriter(newBufferLogger(&buf), slog.LevelInfo)

	_, err := w.Write([]byte("first line\nsecond "))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "first line")
	assert.NotContains(t, buf.String(), "second")

	_, err = w.Write([]byte("half\r\n"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "second half")

	_, err = w.Write([]byte("tail without newline"))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "tail")

	require.NoError(t, w.Close())
	assert.Contains(t, buf.String(), "tail without newline")
}

func TestLineWriter_SkipsEmptyLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewLineWriter(newBufferLogger(&buf), slog.LevelInfo)

	_, err := w.Write([]byte("\n\n\nreal\n"))
	require.NoError(t, err)

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("msg=")))
	assert.Contains(t, buf.String(), "real")
}

func TestTPSMonitor(t *testing.T) {
	var m TPSMonitor
	m.Start()

	m.Update()
	m.Update()
	m.Update()
	assert.Equal(t, 0, m.TPS(), "window has not closed yet")

	time.Sleep(1050 * time.Millisecond)
	m.Update()
	assert.Equal(t, 4, m.TPS())

	// The next window starts fresh.
	m.Update()
	assert.Equal(t, 4, m.TPS())
}

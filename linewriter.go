package commons

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// LineWriter is an io.WriteCloser that forwards each complete line written
// to it as one structured log record. Plug it into the stdout/stderr of a
// subprocess or a legacy print-style logger to route its output through
// slog.
//
// Partial lines are buffered until a newline arrives; Close flushes any
// remainder. A LineWriter is safe for concurrent use.
type LineWriter struct {
	mu     sync.Mutex
	logger *Logger
	level  slog.Level
	buf    bytes.Buffer
}

// NewLineWriter creates a LineWriter logging at the given level. A nil
// logger falls back to NewLogger(nil).
func NewLineWriter(logger *Logger, level slog.Level) *LineWriter {
	if logger == nil {
		logger = NewLogger(nil)
	}
	return &LineWriter{logger: logger, level: level}
}

// Write buffers p and emits one log record per complete line.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(w.buf.Bytes()[:idx], "\r"))
		w.buf.Next(idx + 1)
		w.emit(line)
	}
	return len(p), nil
}

// Close flushes a trailing partial line, if any.
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(string(bytes.TrimRight(w.buf.Bytes(), "\r")))
		w.buf.Reset()
	}
	return nil
}

func (w *LineWriter) emit(line string) {
	if line == "" {
		return
	}
	w.logger.Log(context.Background(), w.level, line)
}

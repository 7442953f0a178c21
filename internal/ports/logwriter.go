package ports

import (
	"bytes"
	"context"
	"log/slog"
)

// maxLineBytes caps a buffered diagnostic line; longer lines are emitted in pieces.
const maxLineBytes = 16 * 1024

// LogWriter turns diagnostic output into structured log records, one per line.
type LogWriter struct {
	logger *slog.Logger
	level  slog.Level
	buf    []byte
	lines  int
}

// NewLogWriter returns a writer that logs each complete line at warn level.
func NewLogWriter(logger *slog.Logger) *LogWriter {
	return &LogWriter{logger: logger, level: slog.LevelWarn}
}

func (lw *LogWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		i := bytes.IndexByte(lw.buf, '\n')
		if i < 0 {
			break
		}
		lw.emit(lw.buf[:i])
		lw.buf = lw.buf[i+1:]
	}
	for len(lw.buf) > maxLineBytes {
		lw.emit(lw.buf[:maxLineBytes])
		lw.buf = lw.buf[maxLineBytes:]
	}
	return len(p), nil
}

// Close logs any trailing partial line.
func (lw *LogWriter) Close() error {
	if len(lw.buf) > 0 {
		lw.emit(lw.buf)
		lw.buf = nil
	}
	return nil
}

// Lines returns how many records were emitted.
func (lw *LogWriter) Lines() int { return lw.lines }

func (lw *LogWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	lw.lines++
	lw.logger.Log(context.Background(), lw.level, "application diagnostic", "line", string(line))
}

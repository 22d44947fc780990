package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// maxFieldBytes bounds the result and error fields of a single entry so one
// verbose tool response cannot bloat the action log.
const maxFieldBytes = 2000

// Entry is a single action log record.
type Entry struct {
	Timestamp  time.Time      `json:"ts"`
	Server     string         `json:"server"`
	Tool       string         `json:"tool"`
	User       string         `json:"user,omitempty"`
	Args       map[string]any `json:"args"`
	Status     string         `json:"status"`
	DurationMs int64          `json:"duration_ms"`
	Result     string         `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Entry status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Logger writes entries as JSON lines behind a size-rotated file.
type Logger struct {
	mu     sync.Mutex
	out    io.WriteCloser
	server string
	now    func() time.Time
}

// NewLogger creates an action logger writing to path. Rotation keeps five
// 10 MB generations for thirty days, compressed.
func NewLogger(path, server string) *Logger {
	return &Logger{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
		server: server,
		now:    time.Now,
	}
}

// NewWriterLogger creates an action logger over an arbitrary writer.
func NewWriterLogger(w io.WriteCloser, server string) *Logger {
	return &Logger{out: w, server: server, now: time.Now}
}

// Record writes one entry. The timestamp is stamped here, result and error
// are truncated, and failures go to stderr instead of the caller.
func (l *Logger) Record(e Entry) {
	e.Timestamp = l.now().UTC()
	e.Server = l.server
	e.Result = Truncate(e.Result)
	e.Error = Truncate(e.Error)
	if e.Args == nil {
		e.Args = map[string]any{}
	}

	line, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: marshal failed: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(append(line, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "audit: write failed: %v\n", err)
	}
}

// Success records a completed tool invocation.
func (l *Logger) Success(tool, user string, args map[string]any, result string, elapsed time.Duration) {
	l.Record(Entry{
		Tool:       tool,
		User:       user,
		Args:       args,
		Status:     StatusOK,
		DurationMs: elapsed.Milliseconds(),
		Result:     result,
	})
}

// Failure records a failed tool invocation.
func (l *Logger) Failure(tool, user string, args map[string]any, err error, elapsed time.Duration) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.Record(Entry{
		Tool:       tool,
		User:       user,
		Args:       args,
		Status:     StatusError,
		DurationMs: elapsed.Milliseconds(),
		Error:      msg,
	})
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// Truncate bounds s to maxFieldBytes, marking the cut.
func Truncate(s string) string {
	if len(s) <= maxFieldBytes {
		return s
	}
	return s[:maxFieldBytes] + "..."
}

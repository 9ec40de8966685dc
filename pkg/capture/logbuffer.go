package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm/logger"

	"sql-profiler/pkg/logs"
	"sql-profiler/pkg/profile"
)

// LogBuffer collects text output in the "<statement>\nExecution time: ..."
// layout and parses it back into records on demand.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

var _ Source = (*LogBuffer)(nil)

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Mark returns the current byte offset of the buffer.
func (b *LogBuffer) Mark() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *LogBuffer) Since(mark int) ([]profile.RawQueryRecord, error) {
	b.mu.Lock()
	data := b.buf.Bytes()
	if mark < 0 || mark > len(data) {
		mark = len(data)
	}
	captured := bytes.Clone(data[mark:])
	b.mu.Unlock()

	return logs.ParseExecutionLog(bytes.NewReader(captured))
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TraceLogger is a gorm logger that prints every executed statement followed
// by an execution time line, so that the output can be fed to
// logs.ParseExecutionLog or a LogBuffer.
type TraceLogger struct {
	mu    *sync.Mutex
	out   io.Writer
	level logger.LogLevel
}

var _ logger.Interface = (*TraceLogger)(nil)

func NewTraceLogger(out io.Writer) *TraceLogger {
	return &TraceLogger{mu: &sync.Mutex{}, out: out, level: logger.Info}
}

func (l *TraceLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *TraceLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		slog.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *TraceLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		slog.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *TraceLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		slog.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// Trace writes the statement whether or not it failed.
func (l *TraceLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, _ := fc()
	if sql == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, werr := fmt.Fprintf(l.out, "%s\n%s %.3fms\n", sql, logs.ExecutionTimeMarker, float64(elapsed.Nanoseconds())/1e6); werr != nil {
		slog.Debug("failed to write trace", "error", werr)
	}
	if err != nil {
		slog.Debug("traced failed statement", "error", err)
	}
}

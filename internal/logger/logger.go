// Package logger provides the process-wide structured logger: leveled zap
// output plus categorized domain helpers (database, security, activity, API)
// and periodic in-memory counters for the dashboard.
package logger

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with domain-category helpers. Each helper tags the entry
// with a "category" field and bumps a per-category counter so the dashboard
// can report log volume without scraping files.
type Logger struct {
	zl *zap.Logger

	mu       sync.Mutex
	counters map[string]int

	flushEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// Options configures the logger. A zero Options logs at info level to stderr
// with no periodic counter flush.
type Options struct {
	Level      string        // debug, info, warn, error
	FilePath   string        // optional; appended to alongside stderr
	FlushEvery time.Duration // counter summary interval; 0 disables
}

// New builds a Logger. File sink errors are not fatal: the logger falls back
// to stderr only, since losing a log file must never take the process down.
func New(opts Options) *Logger {
	level := zapcore.InfoLevel
	if err := level.Set(opts.Level); err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}
	if opts.FilePath != "" {
		if f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level))
		}
	}

	l := &Logger{
		zl:         zap.New(zapcore.NewTee(cores...)),
		counters:   make(map[string]int),
		flushEvery: opts.FlushEvery,
		stop:       make(chan struct{}),
	}
	if opts.FlushEvery > 0 {
		go l.flushLoop()
	}
	return l
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{zl: zap.NewNop(), counters: make(map[string]int), stop: make(chan struct{})}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zl.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.zl.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.zl.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zl.Error(msg, fields...) }

// Database logs a database-category event.
func (l *Logger) Database(msg string, fields ...zap.Field) {
	l.count("database")
	l.zl.Info(msg, append(fields, zap.String("category", "database"))...)
}

// Security logs an auth/security-category event at warn level.
func (l *Logger) Security(msg string, fields ...zap.Field) {
	l.count("security")
	l.zl.Warn(msg, append(fields, zap.String("category", "security"))...)
}

// Activity logs a user-activity event.
func (l *Logger) Activity(msg string, fields ...zap.Field) {
	l.count("activity")
	l.zl.Info(msg, append(fields, zap.String("category", "activity"))...)
}

// API logs an API-usage event.
func (l *Logger) API(msg string, fields ...zap.Field) {
	l.count("api")
	l.zl.Info(msg, append(fields, zap.String("category", "api"))...)
}

// Counters returns a copy of the per-category counters since process start.
func (l *Logger) Counters() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.counters))
	for k, v := range l.counters {
		out[k] = v
	}
	return out
}

// Close stops the periodic counter flush and syncs buffered output.
func (l *Logger) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
	_ = l.zl.Sync()
}

func (l *Logger) count(category string) {
	l.mu.Lock()
	l.counters[category]++
	l.mu.Unlock()
}

func (l *Logger) flushLoop() {
	ticker := time.NewTicker(l.flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			snapshot := l.Counters()
			fields := make([]zap.Field, 0, len(snapshot))
			for k, v := range snapshot {
				fields = append(fields, zap.Int(k, v))
			}
			l.zl.Info("log volume by category", fields...)
		case <-l.stop:
			return
		}
	}
}

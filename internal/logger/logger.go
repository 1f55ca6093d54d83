// Package logger provides structured JSON logging and in-process metrics for fhm-matches.
//
// Logging is backed by zap. Callers pass structured fields as a Fields map so that
// packages do not depend on zap directly:
//
//	logger.Info("pipeline finished", logger.Fields{
//	    "run_id":  id,
//	    "matches": 12,
//	})
//
//	logger.Error("snapshot write failed", logger.Fields{"path": path}, err)
//
// Metrics tracking includes counters, gauges and timings. Timings are aggregated
// on the fly (count, total, min, max) so a long-running server keeps constant memory.
//
//	m := logger.DefaultMetrics()
//	m.IncrCounter("pipeline.runs")
//	m.RecordTiming("pipeline.duration", time.Since(start))
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel accepts a level name in any case ("info", "WARN", ...)
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo, "":
		return LevelInfo, nil
	case LevelWarn, "WARNING":
		return LevelWarn, nil
	case LevelError:
		return LevelError, nil
	default:
		return "", fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", s)
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger provides structured logging
type Logger struct {
	z *zap.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger = New(LevelInfo, os.Stdout)
)

// New creates a JSON logger writing entries at or above level to output.
func New(level Level, output io.Writer) *Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(enc),
		zapcore.AddSync(output),
		level.zapLevel(),
	)
	return &Logger{z: zap.New(core)}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// SetDefault replaces the logger used by the package-level functions.
func SetDefault(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// Default returns the logger used by the package-level functions
func Default() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields Fields) *Logger {
	return &Logger{z: l.z.With(toZap(fields, nil)...)}
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.z.Sync()
}

func (l *Logger) Debug(message string, fields Fields) {
	l.z.Debug(message, toZap(fields, nil)...)
}

func (l *Logger) Info(message string, fields Fields) {
	l.z.Info(message, toZap(fields, nil)...)
}

func (l *Logger) Warn(message string, fields Fields) {
	l.z.Warn(message, toZap(fields, nil)...)
}

// Error logs a failure with optional structured fields and the error that caused it.
func (l *Logger) Error(message string, fields Fields, err error) {
	l.z.Error(message, toZap(fields, err)...)
}

// toZap converts fields to zap fields in key order so output is stable.
func toZap(fields Fields, err error) []zap.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	if err != nil {
		out = append(out, zap.String("error", err.Error()))
	}
	return out
}

// Package-level convenience functions using the default logger

func Debug(message string, fields Fields) {
	Default().Debug(message, fields)
}

func Info(message string, fields Fields) {
	Default().Info(message, fields)
}

func Warn(message string, fields Fields) {
	Default().Warn(message, fields)
}

func Error(message string, fields Fields, err error) {
	Default().Error(message, fields, err)
}

// Metrics tracks operational counters, gauges and timings. All operations are thread-safe.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string]*timing
}

type timing struct {
	count    int
	total    time.Duration
	min, max time.Duration
}

var defaultMetrics = NewMetrics()

func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timings:  make(map[string]*timing),
	}
}

func (m *Metrics) IncrCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter adds delta to a counter, creating it on first use.
func (m *Metrics) AddCounter(name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// Counter returns the current value of a counter (0 if never incremented)
func (m *Metrics) Counter(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

func (m *Metrics) RecordTiming(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timings[name]
	if !ok {
		m.timings[name] = &timing{count: 1, total: d, min: d, max: d}
		return
	}
	t.count++
	t.total += d
	if d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
}

// GetSnapshot returns a deep copy of all metrics:
//   - "counters": counter name to value
//   - "gauges": gauge name to value
//   - "timings": timing name to count, total, average, min and max
func (m *Metrics) GetSnapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}

	gauges := make(map[string]float64, len(m.gauges))
	for k, v := range m.gauges {
		gauges[k] = v
	}

	timings := make(map[string]map[string]interface{}, len(m.timings))
	for name, t := range m.timings {
		timings[name] = map[string]interface{}{
			"count":   t.count,
			"total":   t.total.String(),
			"average": (t.total / time.Duration(t.count)).String(),
			"min":     t.min.String(),
			"max":     t.max.String(),
		}
	}

	return map[string]interface{}{
		"counters": counters,
		"gauges":   gauges,
		"timings":  timings,
	}
}

// DefaultMetrics returns the process-wide tracker
func DefaultMetrics() *Metrics {
	return defaultMetrics
}

func GetMetricsSnapshot() map[string]interface{} {
	return defaultMetrics.GetSnapshot()
}

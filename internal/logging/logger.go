package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger defines the structured logging surface used across the ledger engine.
type Logger interface {
	WithService(serviceName string) *slog.Logger
	WithComponent(componentName string) *slog.Logger
	WithOperation(operationName string) *slog.Logger
	WithRequestID(requestID string) *slog.Logger
	WithSymbol(symbol string) *slog.Logger
	WithDataset(kind string) *slog.Logger
	WithError(err error) *slog.Logger
	LogStartup(serviceName string, version string, port int)
	LogShutdown(serviceName string, reason string)
	LogCacheOperation(kind string, key string, hit bool, duration int64)
	LogLedgerQuery(table string, filter string, duration int64, rows int)
	LogRefresh(origin string, kind string)
	LogAPIRequest(method string, path string, statusCode int, duration int64, requestID string)
	Logger() *slog.Logger
}

// StandardLogger is the slog-backed Logger. The handler is JSON on stdout by
// default and the OTLP bridge when telemetry is enabled.
type StandardLogger struct {
	logger *slog.Logger
}

var _ Logger = (*StandardLogger)(nil)

// NewStandardLogger creates a JSON logger on stdout at logLevel.
func NewStandardLogger(logLevel string, environment string) *StandardLogger {
	return NewStandardLoggerWithWriter(os.Stdout, logLevel, environment)
}

// NewStandardLoggerWithWriter creates a JSON logger writing to w.
func NewStandardLoggerWithWriter(w io.Writer, logLevel string, environment string) *StandardLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: getSlogLevel(logLevel),
	})
	logger := slog.New(handler)
	if environment != "" {
		logger = logger.With("environment", environment)
	}
	return &StandardLogger{logger: logger}
}

// NewStandardOTLPLogger creates a logger exporting through OTLP, falling back
// to stdout JSON if the exporter cannot be built.
func NewStandardOTLPLogger(config OTLPConfig) (*StandardLogger, *OTLPLogger) {
	otlpLogger, err := NewOTLPLogger(config)
	if err != nil {
		fallback := NewStandardLogger(config.LogLevel, config.Environment)
		fallback.logger.Warn("OTLP logging unavailable, using stdout", "error", err.Error())
		return fallback, nil
	}
	return &StandardLogger{logger: otlpLogger.Logger()}, otlpLogger
}

// NewStandardLoggerFrom wraps an existing slog logger.
func NewStandardLoggerFrom(logger *slog.Logger) *StandardLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StandardLogger{logger: logger}
}

func (l *StandardLogger) WithService(serviceName string) *slog.Logger {
	return l.logger.With("service", serviceName)
}

func (l *StandardLogger) WithComponent(componentName string) *slog.Logger {
	return l.logger.With("component", componentName)
}

func (l *StandardLogger) WithOperation(operationName string) *slog.Logger {
	return l.logger.With("operation", operationName)
}

func (l *StandardLogger) WithRequestID(requestID string) *slog.Logger {
	return l.logger.With("request_id", requestID)
}

func (l *StandardLogger) WithSymbol(symbol string) *slog.Logger {
	return l.logger.With("symbol", symbol)
}

// WithDataset tags records with the dataset kind (trades, shadow, ledger).
func (l *StandardLogger) WithDataset(kind string) *slog.Logger {
	return l.logger.With("dataset", kind)
}

func (l *StandardLogger) WithError(err error) *slog.Logger {
	if err == nil {
		return l.logger
	}
	return l.logger.With("error", err.Error())
}

func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.logger.Info("Application startup",
		"service", serviceName,
		"version", version,
		"port", port,
		"event", "startup",
	)
}

func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.logger.Info("Application shutdown",
		"service", serviceName,
		"reason", reason,
		"event", "shutdown",
	)
}

// LogCacheOperation logs a result cache lookup. duration is in milliseconds.
func (l *StandardLogger) LogCacheOperation(kind string, key string, hit bool, duration int64) {
	l.logger.Debug("Cache operation",
		"dataset", kind,
		"key", key,
		"hit", hit,
		"duration_ms", duration,
		"event", "cache",
	)
}

// LogLedgerQuery logs a completed ledger read. duration is in milliseconds.
func (l *StandardLogger) LogLedgerQuery(table string, filter string, duration int64, rows int) {
	l.logger.Debug("Ledger query",
		"table", table,
		"filter", filter,
		"duration_ms", duration,
		"rows", rows,
		"event", "database",
	)
}

func (l *StandardLogger) LogRefresh(origin string, kind string) {
	if kind == "" {
		kind = "all"
	}
	l.logger.Info("Result caches invalidated",
		"origin", origin,
		"dataset", kind,
		"event", "refresh",
	)
}

func (l *StandardLogger) LogAPIRequest(method string, path string, statusCode int, duration int64, requestID string) {
	l.logger.Info("API request",
		"method", method,
		"path", path,
		"status", statusCode,
		"duration_ms", duration,
		"request_id", requestID,
		"event", "api",
	)
}

func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger
}

// getSlogLevel converts string level to slog.Level
func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

package zap

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SubhajL/online-trading-sub001/log"
)

// Logger is the zap implementation of the log.Logger interface.
type Logger struct {
	sugar       *zap.SugaredLogger
	atomicLevel zap.AtomicLevel
}

// Compile-time assertion: *Logger implements log.Logger.
var _ log.Logger = (*Logger)(nil)

// NewLogger creates a production JSON logger at the given level.
func NewLogger(level log.LogLevel) *Logger {
	atomicLevel := zap.NewAtomicLevelAt(toZapLevel(level))

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		atomicLevel,
	)

	return &Logger{
		sugar:       zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar(),
		atomicLevel: atomicLevel,
	}
}

// NewLoggerFromEnvironment reads LOG_LEVEL and builds a logger, defaulting
// to info when the variable is unset or invalid.
func NewLoggerFromEnvironment() *Logger {
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = log.InfoLevel
	}

	return NewLogger(level)
}

func (l *Logger) must() *zap.SugaredLogger {
	if l == nil || l.sugar == nil {
		return zap.NewNop().Sugar()
	}

	return l.sugar
}

// Info implements the log.Logger interface.
func (l *Logger) Info(args ...any) { l.must().Info(args...) }

// Infof implements the log.Logger interface.
func (l *Logger) Infof(format string, args ...any) { l.must().Infof(format, args...) }

// Warn implements the log.Logger interface.
func (l *Logger) Warn(args ...any) { l.must().Warn(args...) }

// Warnf implements the log.Logger interface.
func (l *Logger) Warnf(format string, args ...any) { l.must().Warnf(format, args...) }

// Error implements the log.Logger interface.
func (l *Logger) Error(args ...any) { l.must().Error(args...) }

// Errorf implements the log.Logger interface.
func (l *Logger) Errorf(format string, args ...any) { l.must().Errorf(format, args...) }

// Debug implements the log.Logger interface.
func (l *Logger) Debug(args ...any) { l.must().Debug(args...) }

// Debugf implements the log.Logger interface.
func (l *Logger) Debugf(format string, args ...any) { l.must().Debugf(format, args...) }

// WithFields returns a child logger carrying alternating key/value pairs.
//
//nolint:ireturn
func (l *Logger) WithFields(fields ...any) log.Logger {
	return &Logger{
		sugar:       l.must().With(fields...),
		atomicLevel: l.atomicLevel,
	}
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.must().Sync()
}

// Level returns the runtime-adjustable level handle for this logger.
func (l *Logger) Level() zap.AtomicLevel {
	return l.atomicLevel
}

// toZapLevel converts a log.LogLevel to a zapcore.Level.
func toZapLevel(level log.LogLevel) zapcore.Level {
	switch level {
	case log.DebugLevel:
		return zapcore.DebugLevel
	case log.InfoLevel:
		return zapcore.InfoLevel
	case log.WarnLevel:
		return zapcore.WarnLevel
	case log.ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

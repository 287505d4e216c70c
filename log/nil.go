package log

// NoneLogger is a no-op logger implementation. It is the default for
// components constructed without an explicit Logger.
type NoneLogger struct{}

// NewNone creates a no-op logger implementation.
func NewNone() Logger {
	return &NoneLogger{}
}

// Info drops all log events.
func (l *NoneLogger) Info(_ ...any) {}

// Infof drops all log events.
func (l *NoneLogger) Infof(_ string, _ ...any) {}

// Warn drops all log events.
func (l *NoneLogger) Warn(_ ...any) {}

// Warnf drops all log events.
func (l *NoneLogger) Warnf(_ string, _ ...any) {}

// Error drops all log events.
func (l *NoneLogger) Error(_ ...any) {}

// Errorf drops all log events.
func (l *NoneLogger) Errorf(_ string, _ ...any) {}

// Debug drops all log events.
func (l *NoneLogger) Debug(_ ...any) {}

// Debugf drops all log events.
func (l *NoneLogger) Debugf(_ string, _ ...any) {}

// WithFields returns the same no-op logger.
//
//nolint:ireturn
func (l *NoneLogger) WithFields(_ ...any) Logger { return l }

// Sync is a no-op and always returns nil.
func (l *NoneLogger) Sync() error { return nil }

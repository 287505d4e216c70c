package log

import (
	"fmt"
	"log"
	"strings"
)

// GoLogger is the Go built-in (log) implementation of the Logger interface.
//
// All string arguments are sanitized to prevent log injection (CWE-117).
type GoLogger struct {
	Level  LogLevel
	fields []any
}

// IsLevelEnabled checks if the given level is enabled.
func (l *GoLogger) IsLevelEnabled(level LogLevel) bool {
	if l == nil {
		return false
	}

	return l.Level >= level
}

// Info implements the Logger interface.
func (l *GoLogger) Info(args ...any) {
	if l.IsLevelEnabled(InfoLevel) {
		log.Print(l.hydrateWithLevel(InfoLevel, args...))
	}
}

// Infof implements the Logger interface.
func (l *GoLogger) Infof(format string, args ...any) {
	if l.IsLevelEnabled(InfoLevel) {
		log.Print(l.hydrateWithLevel(InfoLevel, fmt.Sprintf(sanitizeLogString(format), args...)))
	}
}

// Warn implements the Logger interface.
func (l *GoLogger) Warn(args ...any) {
	if l.IsLevelEnabled(WarnLevel) {
		log.Print(l.hydrateWithLevel(WarnLevel, args...))
	}
}

// Warnf implements the Logger interface.
func (l *GoLogger) Warnf(format string, args ...any) {
	if l.IsLevelEnabled(WarnLevel) {
		log.Print(l.hydrateWithLevel(WarnLevel, fmt.Sprintf(sanitizeLogString(format), args...)))
	}
}

// Error implements the Logger interface.
func (l *GoLogger) Error(args ...any) {
	if l.IsLevelEnabled(ErrorLevel) {
		log.Print(l.hydrateWithLevel(ErrorLevel, args...))
	}
}

// Errorf implements the Logger interface.
func (l *GoLogger) Errorf(format string, args ...any) {
	if l.IsLevelEnabled(ErrorLevel) {
		log.Print(l.hydrateWithLevel(ErrorLevel, fmt.Sprintf(sanitizeLogString(format), args...)))
	}
}

// Debug implements the Logger interface.
func (l *GoLogger) Debug(args ...any) {
	if l.IsLevelEnabled(DebugLevel) {
		log.Print(l.hydrateWithLevel(DebugLevel, args...))
	}
}

// Debugf implements the Logger interface.
func (l *GoLogger) Debugf(format string, args ...any) {
	if l.IsLevelEnabled(DebugLevel) {
		log.Print(l.hydrateWithLevel(DebugLevel, fmt.Sprintf(sanitizeLogString(format), args...)))
	}
}

// WithFields implements the Logger interface.
//
//nolint:ireturn
func (l *GoLogger) WithFields(fields ...any) Logger {
	if l == nil {
		return &GoLogger{}
	}

	newFields := make([]any, 0, len(l.fields)+len(fields))
	newFields = append(newFields, l.fields...)
	newFields = append(newFields, fields...)

	return &GoLogger{
		Level:  l.Level,
		fields: newFields,
	}
}

// Sync implements the Logger interface.
func (l *GoLogger) Sync() error { return nil }

func (l *GoLogger) hydrateWithLevel(level LogLevel, args ...any) string {
	message := fmt.Sprint(sanitizeLogArgs(args)...)

	if l == nil {
		return message
	}

	messageParts := make([]string, 0, 3)
	messageParts = append(messageParts, fmt.Sprintf("[%s]", level.String()))

	if fields := l.hydrateFields(); fields != "" {
		messageParts = append(messageParts, fields)
	}

	messageParts = append(messageParts, message)

	return strings.Join(messageParts, " ")
}

func (l *GoLogger) hydrateFields() string {
	if len(l.fields) == 0 {
		return ""
	}

	parts := make([]string, 0, (len(l.fields)+1)/2)

	for i := 0; i < len(l.fields); i += 2 {
		if i+1 >= len(l.fields) {
			parts = append(parts, fmt.Sprint(l.fields[i]))
			continue
		}

		parts = append(parts, fmt.Sprintf("%v=%v", l.fields[i], l.fields[i+1]))
	}

	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}

// Package zap provides the production implementation of the log.Logger
// facade, backed by go.uber.org/zap.
//
// Use NewLogger for JSON output at an explicit level, or
// NewLoggerFromEnvironment to read LOG_LEVEL.
package zap

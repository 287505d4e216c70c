// Package log defines the logging facade used across the reliability core.
//
// Components accept a Logger by injection and default a nil Logger to
// NoneLogger, so library code never writes to a logger it was not given.
// GoLogger is a stdlib-backed implementation for tools and tests; the zap
// package provides the production implementation.
package log

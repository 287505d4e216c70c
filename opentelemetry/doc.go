// Package opentelemetry provides span helpers shared by the database and
// cache layers.
//
// Only the OpenTelemetry API is used here: provider and exporter setup is
// left to the application, so importing this package never forces an SDK
// choice. With no provider installed, spans are no-ops.
package opentelemetry

// Package logger builds the service's slog.Logger: JSON output for
// production log aggregation, text for local development, plus a few
// attribute constructors that keep field naming consistent across packages.
package logger

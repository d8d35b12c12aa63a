// Package logger provides structured logging for chaingate.
//
// It wraps log/slog:
//
//   - logger.go: Logger interface, construction, dynamic level
//   - context.go: context propagation of loggers and request/connection ids
//   - redact.go: masking of credentials, cookies and password digests
//
// Components that only need a *slog.Logger receive one through Slog; the
// redacting handler sits underneath either way.
package logger

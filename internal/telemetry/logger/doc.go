// Package logger provides structured logging for kubedash.
//
// Two backends implement the same Logger interface: log/slog (the
// default) and go.uber.org/zap, selected with Config.Backend "zap".
// The level is shared by every logger in the process and can be changed
// at runtime with SetLevel.
//
// Bearer tokens never reach the output. JWT-looking values are masked
// and attributes whose key names a secret are replaced entirely.
// Loggers derived with WithContext add the request_id set by
// WithRequestID and the trace_id of the active span.
package logger

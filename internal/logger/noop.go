package logger

// NoOpLogger discards everything.
type NoOpLogger struct{}

// NewNoOp returns a logger that does nothing.
func NewNoOp() Interface {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...any) {}
func (l *NoOpLogger) Info(msg string, fields ...any)  {}
func (l *NoOpLogger) Warn(msg string, fields ...any)  {}
func (l *NoOpLogger) Error(msg string, fields ...any) {}
func (l *NoOpLogger) Fatal(msg string, fields ...any) {}

// With returns the same no-op logger.
func (l *NoOpLogger) With(fields ...any) Interface { return l }

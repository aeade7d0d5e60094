package logger

// Logger is the structured logger shared by every component. Each method
// takes a message followed by alternating keys and values.
type Logger interface {
	// DebugW logs per-message detail such as dropped frames.
	DebugW(msg string, keysAndValues ...any)
	InfoW(msg string, keysAndValues ...any)
	WarnW(msg string, keysAndValues ...any)
	ErrorW(msg string, keysAndValues ...any)
	// Sync flushes buffered entries. Call it before exit.
	Sync() error
}

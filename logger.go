package hotmod

// Logger defines the interface for kernel logging.
// The kernel uses structured logging with key-value pairs so that hosts
// control how lifecycle logs appear.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Info("Module registered", "module", "user", "routes", 2)
//
// *slog.Logger satisfies this interface and is used when no logger is
// configured. Logging is purely observational: no kernel decision ever
// depends on a log call.
type Logger interface {
	// Info logs normal lifecycle events such as module registration.
	Info(msg string, args ...any)

	// Error logs failures that the kernel recovered from or surfaced to the caller.
	Error(msg string, args ...any)

	// Warn logs unusual but harmless conditions, e.g. unloading an unknown module.
	Warn(msg string, args ...any)

	// Debug logs detailed diagnostic information.
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// NoopLogger returns a Logger that discards everything.
func NoopLogger() Logger { return noopLogger{} }

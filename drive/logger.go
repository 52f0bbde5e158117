package drive

// Logger interface for drive logging
type Logger interface {
	Printf(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
	DebugCAN(direction string, id uint32, data []byte, length uint8)
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Printf(format string, v ...interface{})                          {}
func (NopLogger) Debug(format string, v ...interface{})                           {}
func (NopLogger) Info(format string, v ...interface{})                            {}
func (NopLogger) Warn(format string, v ...interface{})                            {}
func (NopLogger) Error(format string, v ...interface{})                           {}
func (NopLogger) DebugCAN(direction string, id uint32, data []byte, length uint8) {}

// LogCAN logs a CAN frame if a logger is configured
func LogCAN(logger Logger, direction string, id uint32, data []byte, length uint8) {
	if logger != nil {
		logger.DebugCAN(direction, id, data, length)
	}
}

func orNop(logger Logger) Logger {
	if logger == nil {
		return NopLogger{}
	}
	return logger
}

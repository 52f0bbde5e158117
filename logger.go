package main

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"linear-axis/drive"
)

// LeveledLogger filters a standard logger by level. It is handed to the
// drive and canopen packages as their drive.Logger.
type LeveledLogger struct {
	logger   *log.Logger
	logLevel atomic.Int32
}

func NewLeveledLogger(logger *log.Logger, level LogLevel) *LeveledLogger {
	l := &LeveledLogger{logger: logger}
	l.SetLevel(level)
	return l
}

func (l *LeveledLogger) logf(level LogLevel, tag, format string, v ...interface{}) {
	if l.GetLevel() >= level {
		l.logger.Printf("["+tag+"] "+format, v...)
	}
}

func (l *LeveledLogger) Debug(format string, v ...interface{}) {
	l.logf(LogLevelDebug, "DEBUG", format, v...)
}

func (l *LeveledLogger) Info(format string, v ...interface{}) {
	l.logf(LogLevelInfo, "INFO", format, v...)
}

func (l *LeveledLogger) Warn(format string, v ...interface{}) {
	l.logf(LogLevelWarn, "WARN", format, v...)
}

func (l *LeveledLogger) Error(format string, v ...interface{}) {
	l.logf(LogLevelError, "ERROR", format, v...)
}

// Printf logs at INFO level
func (l *LeveledLogger) Printf(format string, v ...interface{}) {
	l.Info(format, v...)
}

func (l *LeveledLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatalf("[FATAL] "+format, v...)
}

func (l *LeveledLogger) SetLevel(level LogLevel) {
	l.logLevel.Store(int32(level))
}

func (l *LeveledLogger) GetLevel() LogLevel {
	return LogLevel(l.logLevel.Load())
}

// DebugCAN logs an SDO frame at DEBUG level
func (l *LeveledLogger) DebugCAN(direction string, id uint32, data []byte, length uint8) {
	if l.GetLevel() < LogLevelDebug {
		return
	}
	var sb strings.Builder
	for i := uint8(0); i < length && int(i) < len(data) && i < 8; i++ {
		fmt.Fprintf(&sb, "%02X ", data[i])
	}
	l.logger.Printf("[DEBUG] CAN %s: ID=0x%03X Len=%d Data=[%s]", direction, id, length, sb.String())
}

var _ drive.Logger = (*LeveledLogger)(nil)

package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

type LogLevel int

const (
	LogLevelNone  LogLevel = 0
	LogLevelError LogLevel = 1
	LogLevelWarn  LogLevel = 2
	LogLevelInfo  LogLevel = 3
	LogLevelDebug LogLevel = 4
)

// RunMode selects what the service does once the axis is ready
type RunMode int

const (
	RunModeSequence RunMode = iota
	RunModeJog
)

func (m RunMode) String() string {
	if m == RunModeJog {
		return "jog"
	}
	return "sequence"
}

func ParseRunMode(s string) (RunMode, error) {
	switch s {
	case "sequence":
		return RunModeSequence, nil
	case "jog":
		return RunModeJog, nil
	}
	return 0, fmt.Errorf("invalid mode: %s (must be 'sequence' or 'jog')", s)
}

// ParseTargets parses a comma separated list of absolute positions
func ParseTargets(s string) ([]int64, error) {
	var targets []int64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", field, err)
		}
		targets = append(targets, v)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets in %q", s)
	}
	return targets, nil
}

type Options struct {
	LogLevel        LogLevel
	RedisServerAddr string
	RedisServerPort uint16
	CANDevice       string
	NodeID          uint8
	Dictionary      string
	ProfilePath     string
	Mode            RunMode
	Targets         []int64
	Dwell           time.Duration
	PollInterval    time.Duration
	MoveTimeout     time.Duration
	Tolerance       uint32
	JogIncrement    int64
	Simulate        bool
	Logger          *log.Logger
}

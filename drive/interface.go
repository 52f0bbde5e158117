package drive

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ParameterID addresses a single register on the drive (object index + sub-index)
type ParameterID struct {
	Index    uint16
	SubIndex uint8
}

func (id ParameterID) String() string {
	return fmt.Sprintf("0x%04X:%02X", id.Index, id.SubIndex)
}

// ParseParameterID parses the "index:subindex" form printed by String.
// Both parts are hexadecimal, the 0x prefix is optional.
func ParseParameterID(s string) (ParameterID, error) {
	idx, sub, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ParameterID{}, fmt.Errorf("invalid parameter id %q", s)
	}
	index, err := strconv.ParseUint(trimHex(idx), 16, 16)
	if err != nil {
		return ParameterID{}, fmt.Errorf("invalid index in parameter id %q: %w", s, err)
	}
	subIndex, err := strconv.ParseUint(trimHex(sub), 16, 8)
	if err != nil {
		return ParameterID{}, fmt.Errorf("invalid sub-index in parameter id %q: %w", s, err)
	}
	return ParameterID{Index: uint16(index), SubIndex: uint8(subIndex)}, nil
}

func trimHex(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}

// Port gives register-style access to a remote drive.
// Implementations handle one outstanding request at a time.
type Port interface {
	// Read returns the current value of a register
	Read(ctx context.Context, id ParameterID) (int64, error)

	// Write stores a value in a register
	Write(ctx context.Context, id ParameterID, value int64) error
}

// TransportConfig describes how to reach the drive
type TransportConfig struct {
	// Channel is the bus interface name, e.g. can0
	Channel string

	// NodeID is the drive's node address on the bus
	NodeID uint8

	// Dictionary references the device description file. It is passed
	// through to the transport untouched.
	Dictionary string
}

// Session is an open connection to the drive
type Session interface {
	Port() Port
	Close() error
}

// Transport opens sessions
type Transport interface {
	Open(ctx context.Context, config TransportConfig) (Session, error)
}

// JogCommand is a discrete operator request
type JogCommand int

const (
	JogPositive JogCommand = iota
	JogNegative
	ResetReference
)

func (c JogCommand) String() string {
	switch c {
	case JogPositive:
		return "jog+"
	case JogNegative:
		return "jog-"
	case ResetReference:
		return "reset"
	default:
		return "unknown"
	}
}

// JogSource produces operator commands until ctx is done.
// Calling Commands again starts a fresh sequence.
type JogSource interface {
	Commands(ctx context.Context) <-chan JogCommand
}

// DiagnosticsSink receives completed moves and axis status for reporting
type DiagnosticsSink interface {
	ReportMove(report MoveReport) error
	ReportState(status AxisStatus) error
}

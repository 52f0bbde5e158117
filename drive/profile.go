package drive

import (
	"context"
	"fmt"
)

var (
	// Command and status registers
	RegResetError        = ParameterID{0x4000, 0x01} // write 1 to clear the error register
	RegControlCommand    = ParameterID{0x4000, 0x02} // command code, toggled through 0
	RegDesiredPosition   = ParameterID{0x4000, 0x12} // position used by the set-position command
	RegDeviceMode        = ParameterID{0x4003, 0x01}
	RegPowerEnable       = ParameterID{0x4004, 0x01}
	RegBrakeRelease      = ParameterID{0x4150, 0x01}
	RegActualPosition    = ParameterID{0x4762, 0x01}
	RegTargetAbsolute    = ParameterID{0x4790, 0x01}
	RegTargetRelative    = ParameterID{0x4791, 0x01}
	RegDesiredVelocity   = ParameterID{0x4300, 0x01} // rpm
	RegEncoderResolution = ParameterID{0x4962, 0x01} // counts per revolution

	// Controller feedback
	RegVelFeedback  = ParameterID{0x4350, 0x01}
	RegSVelFeedback = ParameterID{0x4550, 0x01}

	// Velocity PID
	RegVelKp      = ParameterID{0x4310, 0x01}
	RegVelKi      = ParameterID{0x4311, 0x01}
	RegVelKd      = ParameterID{0x4312, 0x01}
	RegVelKiLimit = ParameterID{0x4313, 0x01}
	RegVelKvff    = ParameterID{0x4314, 0x01}

	// Secondary velocity PI
	RegSVelKp  = ParameterID{0x4510, 0x01}
	RegSVelKi  = ParameterID{0x4511, 0x01}
	RegSVelIxR = ParameterID{0x4517, 0x01}

	// Current PI
	RegCurrentKp = ParameterID{0x4210, 0x01}
	RegCurrentKi = ParameterID{0x4211, 0x01}

	// Limits
	RegCurrentLimitPos    = ParameterID{0x4221, 0x01} // mA
	RegCurrentLimitNeg    = ParameterID{0x4223, 0x01} // mA
	RegFollowingErrWindow = ParameterID{0x4732, 0x01} // counts

	// Ramps
	RegAccDV = ParameterID{0x4340, 0x01} // rpm
	RegAccDT = ParameterID{0x4341, 0x01} // ms
	RegDecDV = ParameterID{0x4342, 0x01} // rpm
	RegDecDT = ParameterID{0x4343, 0x01} // ms
)

const (
	// Register values
	EncoderFeedbackHall = 0x96A
	EncoderLines        = 500
	EncoderResolution   = 4 * EncoderLines
	DeviceModePosition  = 7
	CommandSetPosition  = 0x58
)

// Group orders profile entries; registers in later groups may be
// interpreted relative to earlier ones.
type Group int

const (
	GroupFeedback Group = iota
	GroupGains
	GroupLimits
	GroupRamps
	GroupMode
	GroupSetpoints
)

var groupNames = map[Group]string{
	GroupFeedback:  "feedback",
	GroupGains:     "gains",
	GroupLimits:    "limits",
	GroupRamps:     "ramps",
	GroupMode:      "mode",
	GroupSetpoints: "setpoints",
}

func (g Group) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return "unknown"
}

// ParseGroup is the inverse of Group.String
func ParseGroup(s string) (Group, error) {
	for g, name := range groupNames {
		if name == s {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter group %q", s)
}

// Parameter is a single profile entry
type Parameter struct {
	Name  string
	ID    ParameterID
	Value int64
	Group Group
}

// DriveConfig is an ordered set of register values pushed once at startup
type DriveConfig []Parameter

// Validate checks that the config is non-empty, has no duplicate registers and
// is ordered by group.
func (c DriveConfig) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("empty drive profile")
	}
	seen := make(map[ParameterID]string, len(c))
	for i, p := range c {
		if other, ok := seen[p.ID]; ok {
			return fmt.Errorf("parameter %s (%s) duplicates %s", p.Name, p.ID, other)
		}
		seen[p.ID] = p.Name
		if i > 0 && p.Group < c[i-1].Group {
			return fmt.Errorf("parameter %s (%s group) follows %s (%s group)",
				p.Name, p.Group, c[i-1].Name, c[i-1].Group)
		}
	}
	return nil
}

// Value looks up the configured value for a register
func (c DriveConfig) Value(id ParameterID) (int64, bool) {
	for _, p := range c {
		if p.ID == id {
			return p.Value, true
		}
	}
	return 0, false
}

// Apply writes every entry in order and stops at the first failure
func Apply(ctx context.Context, port Port, config DriveConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	for _, p := range config {
		if err := port.Write(ctx, p.ID, p.Value); err != nil {
			return &ParameterError{Param: p, Err: err}
		}
	}
	return nil
}

// DefaultConfig is the BG45ci position-mode profile
func DefaultConfig() DriveConfig {
	return DriveConfig{
		{"vel-feedback", RegVelFeedback, EncoderFeedbackHall, GroupFeedback},
		{"svel-feedback", RegSVelFeedback, EncoderFeedbackHall, GroupFeedback},
		{"encoder-resolution", RegEncoderResolution, EncoderResolution, GroupFeedback},

		{"vel-kp", RegVelKp, 100, GroupGains},
		{"vel-ki", RegVelKi, 0, GroupGains},
		{"vel-kd", RegVelKd, 0, GroupGains},
		{"vel-ki-limit", RegVelKiLimit, 0, GroupGains},
		{"vel-kvff", RegVelKvff, 1000, GroupGains},
		{"svel-kp", RegSVelKp, 100, GroupGains},
		{"svel-ki", RegSVelKi, 100, GroupGains},
		{"svel-ixr", RegSVelIxR, 0, GroupGains},
		{"current-kp", RegCurrentKp, 100, GroupGains},
		{"current-ki", RegCurrentKi, 100, GroupGains},

		{"current-limit-pos", RegCurrentLimitPos, 4000, GroupLimits},
		{"current-limit-neg", RegCurrentLimitNeg, 4000, GroupLimits},
		{"following-error-window", RegFollowingErrWindow, 1000, GroupLimits},

		{"acc-dv", RegAccDV, 1800, GroupRamps},
		{"acc-dt", RegAccDT, 1000, GroupRamps},
		{"dec-dv", RegDecDV, 1800, GroupRamps},
		{"dec-dt", RegDecDT, 1000, GroupRamps},

		{"device-mode", RegDeviceMode, DeviceModePosition, GroupMode},

		{"desired-velocity", RegDesiredVelocity, 750, GroupSetpoints},
	}
}

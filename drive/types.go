package drive

// State is the axis lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StatePoweredOff
	StatePoweredOn
	StateBrakeReleased
	StateReady
	StateDisconnected
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StateConfigured:    "configured",
	StatePoweredOff:    "powered-off",
	StatePoweredOn:     "powered-on",
	StateBrakeReleased: "brake-released",
	StateReady:         "ready",
	StateDisconnected:  "disconnected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Mode is what the axis is currently doing
type Mode int

const (
	ModeIdle Mode = iota
	ModePositionMove
)

func (m Mode) String() string {
	if m == ModePositionMove {
		return "position-move"
	}
	return "idle"
}

// AxisState is the mutable record owned by the Axis
type AxisState struct {
	Powered       bool
	BrakeReleased bool
	Mode          Mode
}

// AxisStatus is a snapshot for diagnostics
type AxisStatus struct {
	State    State
	Axis     AxisState
	Position int64
}

// MoveKind selects absolute or relative positioning
type MoveKind int

const (
	MoveAbsolute MoveKind = iota
	MoveRelative
)

func (k MoveKind) String() string {
	if k == MoveRelative {
		return "relative"
	}
	return "absolute"
}

// DefaultTolerance is the arrival band half-width in encoder counts
const DefaultTolerance uint32 = 1

// MoveTarget describes a commanded move
type MoveTarget struct {
	Kind  MoveKind
	Value int64

	// Origin is the actual position when a relative move was issued
	Origin int64

	// Tolerance is the inclusive half-width of the arrival band
	Tolerance uint32
}

// Goal returns the absolute position the move should end at
func (t MoveTarget) Goal() int64 {
	if t.Kind == MoveRelative {
		return t.Origin + t.Value
	}
	return t.Value
}

// Status is how a tracked move ended
type Status int

const (
	StatusArrived Status = iota
	StatusTimeout
	StatusCancelled
	StatusFailed
)

var statusNames = map[Status]string{
	StatusArrived:   "arrived",
	StatusTimeout:   "timeout",
	StatusCancelled: "cancelled",
	StatusFailed:    "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Sample is one position reading
type Sample struct {
	Timestamp float64 // seconds since the move started
	Position  int64   // encoder counts
	Velocity  float64 // counts per second
}

// MoveReport is what a DiagnosticsSink receives after a move
type MoveReport struct {
	Target  MoveTarget
	Status  Status
	Samples []Sample
	Err     error
}

package drive

import (
	"context"
	"math"
	"sync"
	"time"
)

// SimulatedDrive is an in-memory Port that behaves like the drive for the
// registers this package uses. Position advances with wall time at the
// configured velocity while the power stage is on and the brake released.
type SimulatedDrive struct {
	mu         sync.Mutex
	regs       map[ParameterID]int64
	position   float64
	target     float64
	moving     bool
	last       time.Time
	toggled    bool
	toggledAt  time.Time
	failWrites map[ParameterID]error
	writes     int

	now func() time.Time
}

func NewSimulatedDrive() *SimulatedDrive {
	return &SimulatedDrive{
		regs:       make(map[ParameterID]int64),
		failWrites: make(map[ParameterID]error),
		now:        time.Now,
	}
}

// FailWrite makes every later write to id fail with err; nil clears it
func (d *SimulatedDrive) FailWrite(id ParameterID, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failWrites, id)
		return
	}
	d.failWrites[id] = err
}

// SetPosition places the axis at pos and stops any motion
func (d *SimulatedDrive) SetPosition(pos int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = float64(pos)
	d.target = d.position
	d.moving = false
}

// Register returns the last value written to id
func (d *SimulatedDrive) Register(id ParameterID) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[id]
}

// Writes counts successful writes
func (d *SimulatedDrive) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

func (d *SimulatedDrive) Read(ctx context.Context, id ParameterID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &PortError{Op: "read", ID: id, Err: err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.advance()
	if id == RegActualPosition {
		return int64(math.Round(d.position)), nil
	}
	return d.regs[id], nil
}

func (d *SimulatedDrive) Write(ctx context.Context, id ParameterID, value int64) error {
	if err := ctx.Err(); err != nil {
		return &PortError{Op: "write", ID: id, Err: err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.failWrites[id]; ok {
		return &PortError{Op: "write", ID: id, Err: err}
	}

	d.advance()
	d.regs[id] = value
	d.writes++

	switch id {
	case RegTargetAbsolute:
		d.target = float64(value)
		d.moving = true
	case RegTargetRelative:
		d.target = math.Round(d.position) + float64(value)
		d.moving = true
	case RegPowerEnable:
		if value == 0 {
			d.target = d.position
			d.moving = false
		}
	case RegControlCommand:
		now := d.now()
		switch {
		case value == 0:
			d.toggled = true
			d.toggledAt = now
		case value == CommandSetPosition && d.toggled && now.Sub(d.toggledAt) >= MinSettleDelay:
			d.position = float64(d.regs[RegDesiredPosition])
			d.target = d.position
			d.moving = false
			d.toggled = false
		default:
			d.toggled = false
		}
	}
	return nil
}

// countsPerSecond converts the desired velocity in rpm into encoder counts/s
func (d *SimulatedDrive) countsPerSecond() float64 {
	resolution := d.regs[RegEncoderResolution]
	if resolution == 0 {
		resolution = EncoderResolution
	}
	return float64(d.regs[RegDesiredVelocity]) * float64(resolution) / 60
}

func (d *SimulatedDrive) advance() {
	now := d.now()
	prev := d.last
	d.last = now
	dt := now.Sub(prev).Seconds()
	if prev.IsZero() || dt <= 0 || !d.moving {
		return
	}
	if d.regs[RegPowerEnable] == 0 || d.regs[RegBrakeRelease] == 0 {
		return
	}

	step := d.countsPerSecond() * dt
	remaining := d.target - d.position
	if math.Abs(remaining) <= step {
		d.position = d.target
		d.moving = false
		return
	}
	d.position += math.Copysign(step, remaining)
}

// SimulatedTransport opens sessions on a SimulatedDrive
type SimulatedTransport struct {
	Drive *SimulatedDrive
}

func (t *SimulatedTransport) Open(ctx context.Context, config TransportConfig) (Session, error) {
	if t.Drive == nil {
		t.Drive = NewSimulatedDrive()
	}
	return simulatedSession{drive: t.Drive}, nil
}

type simulatedSession struct {
	drive *SimulatedDrive
}

func (s simulatedSession) Port() Port   { return s.drive }
func (s simulatedSession) Close() error { return nil }

package drive

import (
	"context"
	"sync"
	"time"
)

const (
	// MinSettleDelay is the shortest wait the drive needs after a power,
	// brake or toggle command before it reliably reflects it
	MinSettleDelay = 100 * time.Millisecond

	// cleanupTimeout bounds best-effort writes made after the caller gave up
	cleanupTimeout = 2 * time.Second
)

// Axis is the motion state machine for one drive. All register access goes
// through it, one request at a time.
type Axis struct {
	mu        sync.Mutex
	port      Port
	logger    Logger
	settle    time.Duration
	tolerance uint32

	state  State
	axis   AxisState
	active *MoveHandle
}

// AxisOption configures an Axis
type AxisOption func(*Axis)

// WithLogger sets the axis logger
func WithLogger(logger Logger) AxisOption {
	return func(a *Axis) { a.logger = orNop(logger) }
}

// WithSettleDelay lengthens the settle delay. Values below MinSettleDelay are raised to it.
func WithSettleDelay(d time.Duration) AxisOption {
	return func(a *Axis) {
		if d < MinSettleDelay {
			d = MinSettleDelay
		}
		a.settle = d
	}
}

// WithTolerance sets the arrival band for moves issued by the axis
func WithTolerance(counts uint32) AxisOption {
	return func(a *Axis) { a.tolerance = counts }
}

func NewAxis(port Port, opts ...AxisOption) *Axis {
	a := &Axis{
		port:      port,
		logger:    NopLogger{},
		settle:    MinSettleDelay,
		tolerance: DefaultTolerance,
		state:     StateUninitialized,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the lifecycle state
func (a *Axis) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Snapshot returns the lifecycle state and the axis record
func (a *Axis) Snapshot() (State, AxisState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state, a.axis
}

// Status reads the actual position and returns it with the current state
func (a *Axis) Status(ctx context.Context) (AxisStatus, error) {
	pos, err := a.Position(ctx)
	state, axis := a.Snapshot()
	return AxisStatus{State: state, Axis: axis, Position: pos}, err
}

// Position reads the actual position register
func (a *Axis) Position(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateDisconnected {
		return 0, a.fail("read position", ErrDisconnected)
	}
	return a.port.Read(ctx, RegActualPosition)
}

// Configure pushes the drive profile
func (a *Axis) Configure(ctx context.Context, config DriveConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateDisconnected {
		return a.fail("configure", ErrDisconnected)
	}
	if a.state != StateUninitialized && a.state != StateConfigured {
		return a.fail("configure", ErrNotReady)
	}
	if err := Apply(ctx, a.port, config); err != nil {
		return a.fail("configure", err)
	}
	a.transition(StateConfigured)
	return nil
}

// Enable clears errors, powers the stage and releases the brake. It either
// reaches Ready or leaves the state as it found it.
func (a *Axis) Enable(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateDisconnected {
		return a.fail("enable", ErrDisconnected)
	}
	if a.state != StateConfigured && a.state != StatePoweredOff {
		return a.fail("enable", ErrNotReady)
	}
	from := a.state

	if err := a.port.Write(ctx, RegResetError, 1); err != nil {
		return a.fail("enable", err)
	}
	if err := a.port.Write(ctx, RegPowerEnable, 1); err != nil {
		return a.fail("enable", err)
	}
	a.transition(StatePoweredOn)

	if err := sleepContext(ctx, a.settle); err != nil {
		a.powerOff(ctx)
		a.state = from
		return a.fail("enable", err)
	}

	if err := a.port.Write(ctx, RegBrakeRelease, 1); err != nil {
		a.powerOff(ctx)
		a.state = from
		return a.fail("enable", err)
	}
	a.transition(StateBrakeReleased)

	a.axis.Powered = true
	a.axis.BrakeReleased = true
	a.axis.Mode = ModeIdle
	a.transition(StateReady)
	return nil
}

// powerOff switches the power stage off after a failed enable
func (a *Axis) powerOff(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := a.port.Write(ctx, RegPowerEnable, 0); err != nil {
		a.logger.Warn("Failed to switch power stage off after aborted enable: %v", err)
	}
}

// MoveAbsolute commands a move to an absolute position
func (a *Axis) MoveAbsolute(ctx context.Context, target int64) (*MoveHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkMove(); err != nil {
		return nil, a.fail("move absolute", err)
	}
	if err := a.port.Write(ctx, RegTargetAbsolute, target); err != nil {
		return nil, a.fail("move absolute", err)
	}
	a.logger.Info("Moving to %d", target)
	return a.begin(MoveTarget{Kind: MoveAbsolute, Value: target, Tolerance: a.tolerance}), nil
}

// MoveRelative commands a move by an offset from the actual position.
// The relative register is distinct from the absolute one on this drive.
func (a *Axis) MoveRelative(ctx context.Context, offset int64) (*MoveHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkMove(); err != nil {
		return nil, a.fail("move relative", err)
	}
	origin, err := a.port.Read(ctx, RegActualPosition)
	if err != nil {
		return nil, a.fail("move relative", err)
	}
	if err := a.port.Write(ctx, RegTargetRelative, offset); err != nil {
		return nil, a.fail("move relative", err)
	}
	a.logger.Info("Moving by %d from %d", offset, origin)
	return a.begin(MoveTarget{Kind: MoveRelative, Value: offset, Origin: origin, Tolerance: a.tolerance}), nil
}

// ResetPositionReference redefines the current position as zero. The drive
// ignores the command unless the toggle write precedes it by a settle interval.
func (a *Axis) ResetPositionReference(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.state == StateDisconnected:
		return a.fail("reset position", ErrDisconnected)
	case a.state == StateUninitialized:
		return a.fail("reset position", ErrNotReady)
	case a.active != nil:
		return a.fail("reset position", ErrBusy)
	}

	if err := a.port.Write(ctx, RegDesiredPosition, 0); err != nil {
		return a.fail("reset position", err)
	}
	if err := a.port.Write(ctx, RegControlCommand, 0); err != nil {
		return a.fail("reset position", err)
	}
	if err := sleepContext(ctx, a.settle); err != nil {
		return a.fail("reset position", err)
	}
	if err := a.port.Write(ctx, RegControlCommand, CommandSetPosition); err != nil {
		return a.fail("reset position", err)
	}
	if err := sleepContext(ctx, a.settle); err != nil {
		return a.fail("reset position", err)
	}
	a.logger.Info("Position reference reset to 0")
	return nil
}

// Disable engages the brake and switches the power stage off. Errors are
// logged and swallowed.
func (a *Axis) Disable(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateDisconnected {
		return
	}

	if err := a.port.Write(ctx, RegBrakeRelease, 0); err != nil {
		a.logger.Warn("Failed to engage brake: %v", err)
	}
	if err := a.port.Write(ctx, RegPowerEnable, 0); err != nil {
		a.logger.Warn("Failed to disable power stage: %v", err)
	}

	a.active = nil
	a.axis = AxisState{Mode: ModeIdle}
	if a.state != StateUninitialized {
		a.transition(StatePoweredOff)
	}
}

// Close marks the axis disconnected. The port is not touched.
func (a *Axis) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.active = nil
	a.axis = AxisState{Mode: ModeIdle}
	a.transition(StateDisconnected)
}

// Track polls a move until it ends and releases the axis for the next move
func (a *Axis) Track(ctx context.Context, h *MoveHandle, t *Tracker) (Result, error) {
	defer h.Release()
	return t.PollUntilArrival(ctx, serialPort{a}, h.Target)
}

func (a *Axis) checkMove() error {
	switch {
	case a.state == StateDisconnected:
		return ErrDisconnected
	case a.state != StateReady || !a.axis.Powered || !a.axis.BrakeReleased:
		return ErrNotReady
	case a.active != nil:
		return ErrBusy
	}
	return nil
}

func (a *Axis) begin(target MoveTarget) *MoveHandle {
	h := &MoveHandle{Target: target, IssuedAt: time.Now(), axis: a}
	a.active = h
	a.axis.Mode = ModePositionMove
	return h
}

func (a *Axis) release(h *MoveHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == h {
		a.active = nil
		a.axis.Mode = ModeIdle
	}
}

func (a *Axis) transition(to State) {
	if a.state != to {
		a.logger.Debug("Axis state %s -> %s", a.state, to)
		a.state = to
	}
}

func (a *Axis) fail(op string, err error) error {
	return &DriveError{Op: op, State: a.state, Err: err}
}

// MoveHandle refers to a commanded move. It must be released, either by
// Axis.Track or explicitly, before another move is accepted.
type MoveHandle struct {
	Target   MoveTarget
	IssuedAt time.Time

	axis *Axis
	once sync.Once
}

// Release frees the axis for the next move
func (h *MoveHandle) Release() {
	h.once.Do(func() { h.axis.release(h) })
}

// serialPort routes tracker reads through the axis lock
type serialPort struct {
	a *Axis
}

func (p serialPort) Read(ctx context.Context, id ParameterID) (int64, error) {
	p.a.mu.Lock()
	defer p.a.mu.Unlock()
	return p.a.port.Read(ctx, id)
}

func (p serialPort) Write(ctx context.Context, id ParameterID, value int64) error {
	p.a.mu.Lock()
	defer p.a.mu.Unlock()
	return p.a.port.Write(ctx, id, value)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

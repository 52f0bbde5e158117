package drive

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func readyAxis(t *testing.T, port *fakePort) *Axis {
	t.Helper()
	a := NewAxis(port)
	if err := a.Configure(context.Background(), DefaultConfig()); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	if err := a.Enable(context.Background()); err != nil {
		t.Fatalf("Enable error: %v", err)
	}
	port.mu.Lock()
	port.writes = nil
	port.reads = 0
	port.mu.Unlock()
	return a
}

func TestMoveNotReady(t *testing.T) {
	for _, state := range []string{"uninitialized", "configured"} {
		port := newFakePort()
		a := NewAxis(port)
		if state == "configured" {
			if err := a.Configure(context.Background(), DefaultConfig()); err != nil {
				t.Fatalf("Configure error: %v", err)
			}
		}
		before := len(port.written())

		_, errAbs := a.MoveAbsolute(context.Background(), 1000)
		_, errRel := a.MoveRelative(context.Background(), 1000)

		if !errors.Is(errAbs, ErrNotReady) {
			t.Errorf("%s: MoveAbsolute expected ErrNotReady, got %v", state, errAbs)
		}
		if !errors.Is(errRel, ErrNotReady) {
			t.Errorf("%s: MoveRelative expected ErrNotReady, got %v", state, errRel)
		}
		if got := len(port.written()) - before; got != 0 {
			t.Errorf("%s: expected no register writes, got %d", state, got)
		}
		if port.readCount() != 0 {
			t.Errorf("%s: expected no register reads, got %d", state, port.readCount())
		}
	}
}

func TestEnableSequence(t *testing.T) {
	port := newFakePort()
	a := NewAxis(port)
	if err := a.Configure(context.Background(), DefaultConfig()); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	configWrites := len(port.written())

	if err := a.Enable(context.Background()); err != nil {
		t.Fatalf("Enable error: %v", err)
	}

	writes := port.written()[configWrites:]
	want := []ParameterID{RegResetError, RegPowerEnable, RegBrakeRelease}
	var got []ParameterID
	for _, w := range writes {
		got = append(got, w.ID)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("enable writes mismatch (-want +got):\n%s", diff)
	}
	if gap := writes[2].At.Sub(writes[1].At); gap < MinSettleDelay {
		t.Errorf("brake released %v after power enable, expected at least %v", gap, MinSettleDelay)
	}

	state, axis := a.Snapshot()
	if state != StateReady {
		t.Errorf("state: expected ready, got %s", state)
	}
	if !axis.Powered || !axis.BrakeReleased || axis.Mode != ModeIdle {
		t.Errorf("unexpected axis record %+v", axis)
	}
}

func TestEnableRequiresConfiguration(t *testing.T) {
	port := newFakePort()
	a := NewAxis(port)

	err := a.Enable(context.Background())
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if len(port.written()) != 0 {
		t.Error("enable from uninitialized must not write")
	}
}

func TestEnableFailureLeavesStateUnchanged(t *testing.T) {
	port := newFakePort()
	a := NewAxis(port)
	if err := a.Configure(context.Background(), DefaultConfig()); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	port.fail(RegBrakeRelease, errNAK)
	configWrites := len(port.written())

	err := a.Enable(context.Background())

	var driveErr *DriveError
	if !errors.As(err, &driveErr) || !errors.Is(err, errNAK) {
		t.Fatalf("expected DriveError wrapping the port error, got %v", err)
	}
	if state, axis := a.Snapshot(); state != StateConfigured || axis.Powered {
		t.Errorf("expected configured and unpowered, got %s %+v", state, axis)
	}

	// Power stage must not be left on
	writes := port.written()[configWrites:]
	last := writes[len(writes)-1]
	if last.ID != RegPowerEnable || last.Value != 0 {
		t.Errorf("expected power stage switched off, last write %s=%d", last.ID, last.Value)
	}
}

func TestEnableFailureFirstWrite(t *testing.T) {
	port := newFakePort()
	a := NewAxis(port)
	if err := a.Configure(context.Background(), DefaultConfig()); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	port.fail(RegResetError, errNAK)
	configWrites := len(port.written())

	if err := a.Enable(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := len(port.written()) - configWrites; got != 0 {
		t.Errorf("expected no writes after failed reset, got %d", got)
	}
	if a.State() != StateConfigured {
		t.Errorf("state: expected configured, got %s", a.State())
	}
}

func TestMoveAbsolute(t *testing.T) {
	port := newFakePort()
	a := readyAxis(t, port)

	h, err := a.MoveAbsolute(context.Background(), -100000)
	if err != nil {
		t.Fatalf("MoveAbsolute error: %v", err)
	}

	want := []ParameterID{RegTargetAbsolute}
	if diff := cmp.Diff(want, port.writtenIDs()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
	if port.written()[0].Value != -100000 {
		t.Errorf("target: expected -100000, got %d", port.written()[0].Value)
	}
	if h.Target.Kind != MoveAbsolute || h.Target.Goal() != -100000 || h.Target.Tolerance != DefaultTolerance {
		t.Errorf("unexpected target %+v", h.Target)
	}
	if _, axis := a.Snapshot(); axis.Mode != ModePositionMove {
		t.Errorf("mode: expected position-move, got %s", axis.Mode)
	}
}

func TestMoveWhileBusy(t *testing.T) {
	port := newFakePort()
	a := readyAxis(t, port)

	h, err := a.MoveAbsolute(context.Background(), 1000)
	if err != nil {
		t.Fatalf("MoveAbsolute error: %v", err)
	}

	if _, err := a.MoveRelative(context.Background(), 5000); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if err := a.ResetPositionReference(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("reset: expected ErrBusy, got %v", err)
	}
	if got := len(port.written()); got != 1 {
		t.Errorf("expected only the first move written, got %d writes", got)
	}

	h.Release()
	h.Release()
	if _, err := a.MoveAbsolute(context.Background(), 0); err != nil {
		t.Errorf("move after release: %v", err)
	}
}

func TestMoveFailureKeepsAxisReady(t *testing.T) {
	port := newFakePort()
	a := readyAxis(t, port)
	port.fail(RegTargetAbsolute, errNAK)

	if _, err := a.MoveAbsolute(context.Background(), 1000); !errors.Is(err, errNAK) {
		t.Fatalf("expected port error, got %v", err)
	}
	if state, axis := a.Snapshot(); state != StateReady || axis.Mode != ModeIdle {
		t.Errorf("expected ready and idle after failed move, got %s %+v", state, axis)
	}

	port.fail(RegTargetAbsolute, nil)
	if _, err := a.MoveAbsolute(context.Background(), 1000); err != nil {
		t.Errorf("retry: %v", err)
	}
}

func TestMoveRelativeUsesRelativeRegister(t *testing.T) {
	port := newFakePort(12000)
	a := readyAxis(t, port)

	h, err := a.MoveRelative(context.Background(), -5000)
	if err != nil {
		t.Fatalf("MoveRelative error: %v", err)
	}

	want := []ParameterID{RegTargetRelative}
	if diff := cmp.Diff(want, port.writtenIDs()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
	if h.Target.Kind != MoveRelative || h.Target.Origin != 12000 || h.Target.Goal() != 7000 {
		t.Errorf("unexpected target %+v", h.Target)
	}
}

func TestResetPositionReference(t *testing.T) {
	port := newFakePort()
	a := readyAxis(t, port)

	if err := a.ResetPositionReference(context.Background()); err != nil {
		t.Fatalf("ResetPositionReference error: %v", err)
	}

	writes := port.written()
	if len(writes) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(writes))
	}
	if writes[0].ID != RegDesiredPosition || writes[0].Value != 0 {
		t.Errorf("first write: expected desired position 0, got %s=%d", writes[0].ID, writes[0].Value)
	}
	toggle, command := writes[1], writes[2]
	if toggle.ID != RegControlCommand || toggle.Value != 0 {
		t.Errorf("toggle: got %s=%d", toggle.ID, toggle.Value)
	}
	if command.ID != RegControlCommand || command.Value != CommandSetPosition {
		t.Errorf("command: got %s=0x%X", command.ID, command.Value)
	}
	if gap := command.At.Sub(toggle.At); gap < MinSettleDelay {
		t.Errorf("command issued %v after toggle, expected at least %v", gap, MinSettleDelay)
	}
}

func TestResetPositionReferenceRequiresConfiguration(t *testing.T) {
	port := newFakePort()
	a := NewAxis(port)

	if err := a.ResetPositionReference(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if len(port.written()) != 0 {
		t.Error("expected no writes")
	}
}

func TestDisableSwallowsErrors(t *testing.T) {
	port := newFakePort()
	a := readyAxis(t, port)
	port.fail(RegBrakeRelease, errNAK)
	port.fail(RegPowerEnable, errNAK)

	a.Disable(context.Background())

	state, axis := a.Snapshot()
	if state != StatePoweredOff {
		t.Errorf("state: expected powered-off, got %s", state)
	}
	if axis.Powered || axis.BrakeReleased {
		t.Errorf("unexpected axis record %+v", axis)
	}
}

func TestDisableThenEnable(t *testing.T) {
	port := newFakePort()
	a := readyAxis(t, port)

	a.Disable(context.Background())
	want := []ParameterID{RegBrakeRelease, RegPowerEnable}
	if diff := cmp.Diff(want, port.writtenIDs()); diff != "" {
		t.Errorf("disable writes mismatch (-want +got):\n%s", diff)
	}

	if err := a.Enable(context.Background()); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if a.State() != StateReady {
		t.Errorf("state: expected ready, got %s", a.State())
	}
}

func TestCloseDisconnects(t *testing.T) {
	port := newFakePort()
	a := readyAxis(t, port)
	a.Close()

	if a.State() != StateDisconnected {
		t.Fatalf("state: expected disconnected, got %s", a.State())
	}
	if _, err := a.MoveAbsolute(context.Background(), 0); !errors.Is(err, ErrDisconnected) {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
	if err := a.Enable(context.Background()); !errors.Is(err, ErrDisconnected) {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
	a.Disable(context.Background())
	if len(port.written()) != 0 {
		t.Error("disconnected axis must not write")
	}
}

func TestSettleDelayNeverShortened(t *testing.T) {
	a := NewAxis(newFakePort(), WithSettleDelay(0))
	if a.settle != MinSettleDelay {
		t.Errorf("settle: expected %v, got %v", MinSettleDelay, a.settle)
	}
}

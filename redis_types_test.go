package main

import (
	"encoding/json"
	"errors"
	"testing"

	"linear-axis/drive"

	"github.com/google/go-cmp/cmp"
)

func TestRedisAxisStateFields(t *testing.T) {
	status := drive.AxisStatus{
		State:    drive.StateReady,
		Axis:     drive.AxisState{Powered: true, BrakeReleased: true, Mode: drive.ModePositionMove},
		Position: -4200,
	}

	got := NewRedisAxisState(status).Fields()
	want := map[string]interface{}{
		"state":    drive.StateReady.String(),
		"powered":  "on",
		"brake":    "released",
		"mode":     drive.ModePositionMove.String(),
		"position": int64(-4200),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	idle := NewRedisAxisState(drive.AxisStatus{State: drive.StateDisconnected}).Fields()
	if idle["powered"] != "off" || idle["brake"] != "engaged" {
		t.Errorf("unexpected idle fields %v", idle)
	}
}

func TestRedisMove(t *testing.T) {
	report := drive.MoveReport{
		Target: drive.MoveTarget{Kind: drive.MoveRelative, Value: 5000, Origin: 1000},
		Status: drive.StatusFailed,
		Samples: []drive.Sample{
			{Timestamp: 0, Position: 1000},
			{Timestamp: 0.25, Position: 3000, Velocity: 8000},
		},
		Err: errors.New("bus off"),
	}

	got := NewRedisMove(report)
	want := RedisMove{
		Kind:     "relative",
		Target:   6000,
		Status:   drive.StatusFailed.String(),
		Samples:  2,
		Duration: 0.25,
		Velocity: 8000,
		Error:    "bus off",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("move mismatch (-want +got):\n%s", diff)
	}

	fields := got.Fields()
	if fields["last-move:duration"] != "0.250" || fields["velocity"] != "8000.0" {
		t.Errorf("unexpected formatted fields %v", fields)
	}
}

func TestRedisMoveWithoutSamples(t *testing.T) {
	got := NewRedisMove(drive.MoveReport{Target: drive.MoveTarget{Value: 10}, Status: drive.StatusCancelled})
	if got.Kind != "absolute" || got.Samples != 0 || got.Duration != 0 || got.Error != "" {
		t.Errorf("unexpected move %+v", got)
	}
}

func TestEncodeSamples(t *testing.T) {
	samples := []drive.Sample{
		{Timestamp: 0, Position: 0},
		{Timestamp: 0.1, Position: -2500, Velocity: -25000},
	}

	encoded, err := EncodeSamples(samples)
	if err != nil {
		t.Fatalf("EncodeSamples error: %v", err)
	}
	if len(encoded) != len(samples) {
		t.Fatalf("expected %d elements, got %d", len(samples), len(encoded))
	}

	var got RedisSample
	if err := json.Unmarshal([]byte(encoded[1].(string)), &got); err != nil {
		t.Fatalf("element is not JSON: %v", err)
	}
	want := RedisSample{T: 0.1, Position: -2500, Velocity: -25000}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sample mismatch (-want +got):\n%s", diff)
	}
}

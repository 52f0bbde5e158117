package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"linear-axis/drive"
)

// Redis hash representation of the axis status
type RedisAxisState struct {
	State    string
	Powered  bool
	Brake    string // engaged or released
	Mode     string
	Position int64
}

// Redis hash representation of the last completed move
type RedisMove struct {
	Kind     string
	Target   int64
	Status   string
	Samples  int
	Duration float64 // seconds, timestamp of the last sample
	Velocity float64 // counts/s at the last sample
	Error    string
}

// RedisSample is one JSON element of the samples list
type RedisSample struct {
	T        float64 `json:"t"`
	Position int64   `json:"pos"`
	Velocity float64 `json:"vel"`
}

func NewRedisAxisState(status drive.AxisStatus) RedisAxisState {
	return RedisAxisState{
		State:    status.State.String(),
		Powered:  status.Axis.Powered,
		Brake:    map[bool]string{true: "released", false: "engaged"}[status.Axis.BrakeReleased],
		Mode:     status.Axis.Mode.String(),
		Position: status.Position,
	}
}

func (s RedisAxisState) Fields() map[string]interface{} {
	return map[string]interface{}{
		"state":    s.State,
		"powered":  map[bool]string{true: "on", false: "off"}[s.Powered],
		"brake":    s.Brake,
		"mode":     s.Mode,
		"position": s.Position,
	}
}

func NewRedisMove(report drive.MoveReport) RedisMove {
	kind := "absolute"
	if report.Target.Kind == drive.MoveRelative {
		kind = "relative"
	}
	m := RedisMove{
		Kind:    kind,
		Target:  report.Target.Goal(),
		Status:  report.Status.String(),
		Samples: len(report.Samples),
	}
	if n := len(report.Samples); n > 0 {
		m.Duration = report.Samples[n-1].Timestamp
		m.Velocity = report.Samples[n-1].Velocity
	}
	if report.Err != nil {
		m.Error = report.Err.Error()
	}
	return m
}

func (m RedisMove) Fields() map[string]interface{} {
	return map[string]interface{}{
		"last-move:kind":     m.Kind,
		"last-move:target":   m.Target,
		"last-move:status":   m.Status,
		"last-move:samples":  m.Samples,
		"last-move:duration": strconv.FormatFloat(m.Duration, 'f', 3, 64),
		"last-move:error":    m.Error,
		"velocity":           strconv.FormatFloat(m.Velocity, 'f', 1, 64),
	}
}

// EncodeSamples renders samples as JSON list elements
func EncodeSamples(samples []drive.Sample) ([]interface{}, error) {
	out := make([]interface{}, 0, len(samples))
	for _, s := range samples {
		b, err := json.Marshal(RedisSample{T: s.Timestamp, Position: s.Position, Velocity: s.Velocity})
		if err != nil {
			return nil, fmt.Errorf("failed to encode sample: %w", err)
		}
		out = append(out, string(b))
	}
	return out, nil
}

package drive

import (
	"context"
	"time"
)

// DefaultPollInterval is the sampling period of the tracker
const DefaultPollInterval = 100 * time.Millisecond

// Tracker samples the actual position until a move arrives
type Tracker struct {
	// Interval between samples, DefaultPollInterval if zero
	Interval time.Duration

	// Timeout ends tracking once exceeded, none if zero
	Timeout time.Duration

	// OnSample is called with every sample as it is taken
	OnSample func(Sample)

	Logger Logger

	now func() time.Time
}

// Result is the outcome of a tracked move
type Result struct {
	Samples []Sample
	Status  Status
}

// Err maps Timeout and Cancelled onto ErrTimeout and ErrCancelled
func (r Result) Err() error {
	switch r.Status {
	case StatusTimeout:
		return ErrTimeout
	case StatusCancelled:
		return ErrCancelled
	}
	return nil
}

// IsWithinTarget reports whether pos lies in the inclusive band target±tolerance
func IsWithinTarget(pos, target int64, tolerance uint32) bool {
	return target-int64(tolerance) <= pos && pos <= target+int64(tolerance)
}

// Velocity is the position change per second between two samples, or 0
// when no time has passed
func Velocity(prev, cur Sample) float64 {
	dt := cur.Timestamp - prev.Timestamp
	if dt <= 0 {
		return 0
	}
	return float64(cur.Position-prev.Position) / dt
}

// appendSample adds a reading, deriving its velocity from the previous one
func appendSample(samples []Sample, elapsed float64, pos int64) []Sample {
	s := Sample{Timestamp: elapsed, Position: pos}
	if n := len(samples); n > 0 {
		s.Velocity = Velocity(samples[n-1], s)
	}
	return append(samples, s)
}

// PollUntilArrival reads the actual position every Interval until it lies in
// the target's band, Timeout is exceeded, or ctx is cancelled. Cancellation is
// observed between samples. Timeout and cancellation are reported through
// Result.Status with the samples taken so far; only read failures return an
// error.
func (t *Tracker) PollUntilArrival(ctx context.Context, port Port, target MoveTarget) (Result, error) {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	now := t.now
	if now == nil {
		now = time.Now
	}
	logger := orNop(t.Logger)
	goal := target.Goal()

	var samples []Sample
	start := now()
	for {
		if ctx.Err() != nil {
			logger.Info("Tracking %d cancelled after %d samples", goal, len(samples))
			return Result{Samples: samples, Status: StatusCancelled}, nil
		}

		pos, err := port.Read(ctx, RegActualPosition)
		if err != nil {
			if ctx.Err() != nil {
				return Result{Samples: samples, Status: StatusCancelled}, nil
			}
			return Result{Samples: samples, Status: StatusFailed}, err
		}
		elapsed := now().Sub(start)
		samples = appendSample(samples, elapsed.Seconds(), pos)
		logger.Debug("Actual position = %d", pos)
		if t.OnSample != nil {
			t.OnSample(samples[len(samples)-1])
		}

		if IsWithinTarget(pos, goal, target.Tolerance) {
			logger.Info("Arrived at %d after %.2fs", pos, elapsed.Seconds())
			return Result{Samples: samples, Status: StatusArrived}, nil
		}
		if t.Timeout > 0 && elapsed > t.Timeout {
			logger.Warn("Timed out at %d, target %d", pos, goal)
			return Result{Samples: samples, Status: StatusTimeout}, nil
		}

		if err := sleepContext(ctx, interval); err != nil {
			logger.Info("Tracking %d cancelled after %d samples", goal, len(samples))
			return Result{Samples: samples, Status: StatusCancelled}, nil
		}
	}
}

// Follow tracks a move on the axis and packages the outcome for a DiagnosticsSink
func Follow(ctx context.Context, axis *Axis, h *MoveHandle, t *Tracker) MoveReport {
	res, err := axis.Track(ctx, h, t)
	return MoveReport{Target: h.Target, Status: res.Status, Samples: res.Samples, Err: err}
}

package main

import (
	"context"
	"errors"
	"sync"

	"linear-axis/canopen"

	"github.com/go-redis/redis/v8"
)

const (
	diagGroupName           = "linear-axis"
	diagFaultSetKey         = "linear-axis:fault"
	diagEventStream         = "events:faults"
	diagEventStreamMaxLen   = 1000
	diagNotificationChannel = "linear-axis"
)

// Diag keeps the set of drive faults seen on the last operation in Redis.
// Faults are SDO abort codes; a response timeout counts as AbortTimeout.
type Diag struct {
	log         *LeveledLogger
	redis       *redis.Client
	mu          sync.Mutex
	faultStates map[canopen.AbortCode]bool
	ctx         context.Context
}

func NewDiag(logger *LeveledLogger, redis *redis.Client) *Diag {
	return &Diag{
		log:         logger,
		redis:       redis,
		faultStates: make(map[canopen.AbortCode]bool),
		ctx:         context.Background(),
	}
}

func (d *Diag) Destroy() {}

// FaultCode extracts the abort code behind a port error
func FaultCode(err error) (canopen.AbortCode, bool) {
	var abortErr *canopen.AbortError
	switch {
	case err == nil:
		return 0, false
	case errors.As(err, &abortErr):
		return abortErr.Code, true
	case errors.Is(err, canopen.ErrSDOTimeout):
		return canopen.AbortTimeout, true
	}
	return 0, false
}

// Observe records the outcome of an operation. A fault is set when err
// carries one; a successful operation clears all faults.
func (d *Diag) Observe(err error) {
	if code, ok := FaultCode(err); ok {
		d.SetFaultPresence(code, true)
		return
	}
	if err == nil {
		d.ClearFaults()
	}
}

func (d *Diag) SetFaultPresence(code canopen.AbortCode, present bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setFaultPresence(code, present)
}

func (d *Diag) ClearFaults() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for code, present := range d.faultStates {
		if present {
			d.setFaultPresence(code, false)
		}
	}
}

func (d *Diag) setFaultPresence(code canopen.AbortCode, present bool) {
	if d.faultStates[code] == present {
		return
	}
	d.faultStates[code] = present

	description := canopen.GetAbortDescription(code)
	if !present {
		d.log.Info("Fault cleared: code=0x%08X, description=%s", uint32(code), description)
		d.reportFaultAbsent(code)
		return
	}

	if config, ok := canopen.GetAbortConfig(code); ok && config.Severity == canopen.SeverityCritical {
		d.log.Error("Fault set: code=0x%08X, description=%s", uint32(code), description)
	} else {
		d.log.Warn("Fault set: code=0x%08X, description=%s", uint32(code), description)
	}
	d.reportFaultPresent(code, description)
}

func (d *Diag) reportFaultPresent(code canopen.AbortCode, description string) {
	if d.redis == nil {
		return
	}
	pipe := d.redis.Pipeline()

	pipe.SAdd(d.ctx, diagFaultSetKey, uint32(code))

	pipe.XAdd(d.ctx, &redis.XAddArgs{
		Stream: diagEventStream,
		MaxLen: diagEventStreamMaxLen,
		Values: map[string]interface{}{
			"group":       diagGroupName,
			"code":        uint32(code),
			"description": description,
		},
	})

	pipe.Publish(d.ctx, diagNotificationChannel, "fault")

	if _, err := pipe.Exec(d.ctx); err != nil {
		d.log.Error("Failed to report fault present: %v", err)
	}
}

func (d *Diag) reportFaultAbsent(code canopen.AbortCode) {
	if d.redis == nil {
		return
	}
	pipe := d.redis.Pipeline()

	pipe.SRem(d.ctx, diagFaultSetKey, uint32(code))

	pipe.XAdd(d.ctx, &redis.XAddArgs{
		Stream: diagEventStream,
		MaxLen: diagEventStreamMaxLen,
		Values: map[string]interface{}{
			"group": diagGroupName,
			"code":  -int64(code),
		},
	})

	pipe.Publish(d.ctx, diagNotificationChannel, "fault")

	if _, err := pipe.Exec(d.ctx); err != nil {
		d.log.Error("Failed to report fault absent: %v", err)
	}
}

// Faults returns the codes currently set
func (d *Diag) Faults() []canopen.AbortCode {
	d.mu.Lock()
	defer d.mu.Unlock()
	var codes []canopen.AbortCode
	for code, present := range d.faultStates {
		if present {
			codes = append(codes, code)
		}
	}
	return codes
}

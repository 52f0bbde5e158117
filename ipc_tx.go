package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"linear-axis/drive"

	"github.com/go-redis/redis/v8"
)

const (
	ipcHashKey        = "linear-axis"
	ipcSamplesKey     = "linear-axis:samples"
	ipcChannel        = "linear-axis"
	ipcSamplesMaxSize = 10000
)

// IPCTx publishes axis state and move results to Redis. It implements
// drive.DiagnosticsSink.
type IPCTx struct {
	log   *LeveledLogger
	redis *redis.Client
	diag  *Diag
	mu    sync.Mutex
	ctx   context.Context
}

func NewIPCTx(logger *LeveledLogger, redis *redis.Client, diag *Diag) *IPCTx {
	return &IPCTx{
		log:   logger,
		redis: redis,
		diag:  diag,
		ctx:   context.Background(),
	}
}

func (tx *IPCTx) Destroy() {}

func (tx *IPCTx) SendState(data RedisAxisState) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	pipe := tx.redis.Pipeline()
	pipe.HSet(tx.ctx, ipcHashKey, data.Fields())
	pipe.Publish(tx.ctx, ipcChannel, "state")

	if _, err := pipe.Exec(tx.ctx); err != nil {
		return fmt.Errorf("failed to send axis state: %w", err)
	}
	return nil
}

// SendMove stores the move summary and replaces the samples list
func (tx *IPCTx) SendMove(data RedisMove, samples []drive.Sample) error {
	encoded, err := EncodeSamples(samples)
	if err != nil {
		return err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	pipe := tx.redis.TxPipeline()
	pipe.HSet(tx.ctx, ipcHashKey, data.Fields())
	pipe.Del(tx.ctx, ipcSamplesKey)
	if len(encoded) > 0 {
		pipe.RPush(tx.ctx, ipcSamplesKey, encoded...)
		pipe.LTrim(tx.ctx, ipcSamplesKey, -ipcSamplesMaxSize, -1)
	}
	pipe.Publish(tx.ctx, ipcChannel, "move")

	if _, err := pipe.Exec(tx.ctx); err != nil {
		return fmt.Errorf("failed to send move: %w", err)
	}
	return nil
}

// SendSample updates the live position while a move is tracked
func (tx *IPCTx) SendSample(s drive.Sample) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	pipe := tx.redis.Pipeline()
	pipe.HSet(tx.ctx, ipcHashKey,
		"position", s.Position,
		"velocity", strconv.FormatFloat(s.Velocity, 'f', 1, 64),
	)
	pipe.Publish(tx.ctx, ipcChannel, "position")

	if _, err := pipe.Exec(tx.ctx); err != nil {
		return fmt.Errorf("failed to send sample: %w", err)
	}
	return nil
}

func (tx *IPCTx) ReportMove(report drive.MoveReport) error {
	if tx.diag != nil {
		tx.diag.Observe(report.Err)
	}
	return tx.SendMove(NewRedisMove(report), report.Samples)
}

func (tx *IPCTx) ReportState(status drive.AxisStatus) error {
	return tx.SendState(NewRedisAxisState(status))
}

var _ drive.DiagnosticsSink = (*IPCTx)(nil)

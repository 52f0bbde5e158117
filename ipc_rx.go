package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"linear-axis/drive"

	"github.com/go-redis/redis/v8"
)

const (
	ipcJogChannel = "linear-axis:jog"
	ipcJogQueue   = 4
)

// ParseJogCommand maps a jog channel payload onto a command
func ParseJogCommand(payload string) (drive.JogCommand, error) {
	switch strings.TrimSpace(strings.ToLower(payload)) {
	case "jog+", "left":
		return drive.JogPositive, nil
	case "jog-", "right":
		return drive.JogNegative, nil
	case "reset", "up":
		return drive.ResetReference, nil
	}
	return 0, fmt.Errorf("unknown jog command %q", payload)
}

// IPCRx turns messages on the jog channel into drive.JogCommands. It
// implements drive.JogSource.
type IPCRx struct {
	log   *LeveledLogger
	redis *redis.Client
	mu    sync.Mutex
	subs  []*redis.PubSub
}

func NewIPCRx(logger *LeveledLogger, redis *redis.Client) *IPCRx {
	return &IPCRx{
		log:   logger,
		redis: redis,
	}
}

// Commands subscribes to the jog channel. Requests arriving while the queue
// is full are dropped with a Busy warning.
func (rx *IPCRx) Commands(ctx context.Context) <-chan drive.JogCommand {
	out := make(chan drive.JogCommand, ipcJogQueue)

	sub := rx.redis.Subscribe(ctx, ipcJogChannel)
	rx.mu.Lock()
	rx.subs = append(rx.subs, sub)
	rx.mu.Unlock()

	go func() {
		defer close(out)
		defer sub.Close()
		rx.log.Info("Starting jog subscription handler")
		rx.receive(ctx, sub, out)
	}()
	return out
}

func (rx *IPCRx) receive(ctx context.Context, sub *redis.PubSub, out chan<- drive.JogCommand) {
	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, redis.ErrClosed) {
				rx.log.Error("Redis connection lost on jog subscription")
				return
			}
			rx.log.Error("Jog subscription error: %v", err)
			continue
		}

		switch m := msg.(type) {
		case *redis.Message:
			rx.log.Debug("Jog message received: channel=%s, payload=%s", m.Channel, m.Payload)
			cmd, err := ParseJogCommand(m.Payload)
			if err != nil {
				rx.log.Warn("%v", err)
				continue
			}
			rx.enqueue(out, cmd)

		case *redis.Subscription:
			rx.log.Debug("Jog subscription event: %s %s", m.Channel, m.Kind)
		}
	}
}

func (rx *IPCRx) enqueue(out chan<- drive.JogCommand, cmd drive.JogCommand) bool {
	select {
	case out <- cmd:
		return true
	default:
		rx.log.Warn("Dropping %s: %v", cmd, drive.ErrBusy)
		return false
	}
}

func (rx *IPCRx) Destroy() {
	rx.mu.Lock()
	defer rx.mu.Unlock()

	for _, sub := range rx.subs {
		sub.Close()
	}
	rx.subs = nil
}

var _ drive.JogSource = (*IPCRx)(nil)

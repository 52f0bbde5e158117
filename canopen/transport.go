package canopen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"linear-axis/drive"

	"github.com/brutella/can"
	"github.com/cenkalti/backoff"
	"go.uber.org/multierr"
)

// Transport opens SDO sessions on a SocketCAN interface
type Transport struct {
	Logger drive.Logger

	// SDOTimeout overrides DefaultSDOTimeout when set
	SDOTimeout time.Duration

	// Sizes overrides transfer widths of individual registers
	Sizes map[drive.ParameterID]int
}

// Open brings up the bus, retrying with exponential backoff while the
// interface is unavailable, and starts the receive loop.
func (t *Transport) Open(ctx context.Context, config drive.TransportConfig) (drive.Session, error) {
	logger := t.Logger
	if logger == nil {
		logger = drive.NopLogger{}
	}
	if config.NodeID == 0 || config.NodeID > 127 {
		return nil, fmt.Errorf("invalid node id %d", config.NodeID)
	}
	if config.Dictionary != "" {
		logger.Info("Device dictionary: %s", config.Dictionary)
	}

	var bus *can.Bus
	op := func() error {
		b, err := can.NewBusForInterfaceWithName(config.Channel)
		if err != nil {
			logger.Warn("CAN interface %s not available: %v", config.Channel, err)
			return err
		}
		bus = b
		return nil
	}
	policy := &backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      10 * time.Second,
		Clock:               backoff.SystemClock,
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("failed to open CAN interface %s: %w", config.Channel, err)
	}

	client := NewSDOClient(bus, config.NodeID, logger)
	if t.SDOTimeout > 0 {
		client.SetTimeout(t.SDOTimeout)
	}
	for id, n := range t.Sizes {
		if err := client.SetSize(id, n); err != nil {
			client.Close()
			bus.Disconnect()
			return nil, err
		}
	}

	s := &Session{
		bus:    bus,
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.run()

	logger.Info("CAN bus %s open, node %d", config.Channel, config.NodeID)
	return s, nil
}

// Session is an open bus with an SDO client on it
type Session struct {
	bus    *can.Bus
	client *SDOClient
	logger drive.Logger

	mu      sync.Mutex
	closing bool
	loopErr error
	done    chan struct{}
}

func (s *Session) run() {
	defer close(s.done)
	err := s.bus.ConnectAndPublish()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closing {
		s.logger.Error("CAN bus receive loop stopped: %v", err)
		if err == nil {
			err = errors.New("CAN bus receive loop stopped")
		}
		s.loopErr = err
	}
}

func (s *Session) Port() drive.Port {
	return s.client
}

// Close stops the receive loop and releases the interface. A receive loop
// that died earlier is reported together with any disconnect error.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closing = true
	loopErr := s.loopErr
	s.mu.Unlock()

	s.client.Close()
	err := multierr.Append(loopErr, s.bus.Disconnect())

	select {
	case <-s.done:
	case <-time.After(time.Second):
		s.logger.Warn("CAN bus receive loop did not stop")
	}
	return err
}

// Package canopen implements expedited SDO register access on top of a
// SocketCAN bus. It covers what the drive package needs and nothing more:
// no NMT, PDO, segmented or block transfers.
package canopen

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"linear-axis/drive"

	"github.com/brutella/can"
)

const (
	// COB-ID bases, the node id is added
	SDORequestBase  = 0x600
	SDOResponseBase = 0x580

	// Command specifiers
	ccsDownload   = 0x20 // client initiate download (write)
	ccsUpload     = 0x40 // client initiate upload (read)
	scsDownload   = 0x60 // server download confirmation
	scsUpload     = 0x40 // server upload response
	csAbort       = 0x80
	flagExpedited = 0x02
	flagSized     = 0x01

	DefaultSDOTimeout = 500 * time.Millisecond
	defaultSize       = 4
)

var (
	// ErrSDOTimeout is returned when the drive does not answer in time
	ErrSDOTimeout = errors.New("SDO response timeout")

	// ErrUnexpectedResponse is returned for responses with an unknown command specifier
	ErrUnexpectedResponse = errors.New("unexpected SDO response")

	// ErrSegmented is returned when the drive answers with a segmented transfer
	ErrSegmented = errors.New("segmented SDO transfer not supported")
)

// Bus is the part of *can.Bus the client uses
type Bus interface {
	Publish(frame can.Frame) error
	Subscribe(handler can.Handler)
	Unsubscribe(handler can.Handler)
}

// SDOClient reads and writes drive registers with expedited SDO transfers.
// It implements drive.Port.
type SDOClient struct {
	bus     Bus
	node    uint8
	logger  drive.Logger
	timeout time.Duration
	sizes   map[drive.ParameterID]int

	mu        sync.Mutex
	responses chan can.Frame
}

// DefaultSizes holds transfer widths for registers that are not 32 bit wide
var DefaultSizes = map[drive.ParameterID]int{
	drive.RegDeviceMode: 1,
}

func NewSDOClient(bus Bus, node uint8, logger drive.Logger) *SDOClient {
	if logger == nil {
		logger = drive.NopLogger{}
	}
	c := &SDOClient{
		bus:       bus,
		node:      node,
		logger:    logger,
		timeout:   DefaultSDOTimeout,
		sizes:     make(map[drive.ParameterID]int),
		responses: make(chan can.Frame, 1),
	}
	for id, n := range DefaultSizes {
		c.sizes[id] = n
	}
	bus.Subscribe(c)
	return c
}

// SetTimeout changes the per-request response timeout
func (c *SDOClient) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// SetSize sets the transfer width in bytes (1-4) for writes to id
func (c *SDOClient) SetSize(id drive.ParameterID, size int) error {
	if size < 1 || size > 4 {
		return fmt.Errorf("invalid SDO size %d for %s", size, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sizes[id] = size
	return nil
}

// Close stops listening for responses
func (c *SDOClient) Close() {
	c.bus.Unsubscribe(c)
}

// Handle receives frames from the bus and keeps the drive's SDO responses
func (c *SDOClient) Handle(frame can.Frame) {
	if frame.ID != SDOResponseBase+uint32(c.node) {
		return
	}
	drive.LogCAN(c.logger, "RX", frame.ID, frame.Data[:], frame.Length)

	// Nobody waiting: drop
	select {
	case c.responses <- frame:
	default:
	}
}

func (c *SDOClient) Read(ctx context.Context, id drive.ParameterID) (int64, error) {
	req := c.request(ccsUpload, id, nil)

	resp, err := c.exchange(ctx, id, req)
	if err != nil {
		return 0, &drive.PortError{Op: "read", ID: id, Err: err}
	}

	cmd := resp.Data[0]
	if cmd&0xE0 != scsUpload {
		return 0, &drive.PortError{Op: "read", ID: id, Err: ErrUnexpectedResponse}
	}
	if cmd&flagExpedited == 0 {
		return 0, &drive.PortError{Op: "read", ID: id, Err: ErrSegmented}
	}
	n := 4
	if cmd&flagSized != 0 {
		n = 4 - int((cmd>>2)&0x03)
	}
	return decodeValue(resp.Data[4 : 4+n]), nil
}

func (c *SDOClient) Write(ctx context.Context, id drive.ParameterID, value int64) error {
	c.mu.Lock()
	n, ok := c.sizes[id]
	c.mu.Unlock()
	if !ok {
		n = defaultSize
	}

	data, err := encodeValue(value, n)
	if err != nil {
		return &drive.PortError{Op: "write", ID: id, Err: err}
	}
	req := c.request(ccsDownload|byte(4-n)<<2|flagExpedited|flagSized, id, data)

	resp, err := c.exchange(ctx, id, req)
	if err != nil {
		return &drive.PortError{Op: "write", ID: id, Err: err}
	}
	if resp.Data[0] != scsDownload {
		return &drive.PortError{Op: "write", ID: id, Err: ErrUnexpectedResponse}
	}
	return nil
}

func (c *SDOClient) request(cmd byte, id drive.ParameterID, payload []byte) can.Frame {
	frame := can.Frame{
		ID:     SDORequestBase + uint32(c.node),
		Length: 8,
	}
	frame.Data[0] = cmd
	binary.LittleEndian.PutUint16(frame.Data[1:3], id.Index)
	frame.Data[3] = id.SubIndex
	copy(frame.Data[4:], payload)
	return frame
}

// exchange sends a request and waits for the matching response. Only one
// request is outstanding at a time.
func (c *SDOClient) exchange(ctx context.Context, id drive.ParameterID, req can.Frame) (can.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Discard responses to earlier, timed out requests
	select {
	case <-c.responses:
	default:
	}

	drive.LogCAN(c.logger, "TX", req.ID, req.Data[:], req.Length)
	if err := c.bus.Publish(req); err != nil {
		return can.Frame{}, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.abort(id, AbortTimeout)
			return can.Frame{}, ctx.Err()
		case <-timer.C:
			c.abort(id, AbortTimeout)
			return can.Frame{}, ErrSDOTimeout
		case resp := <-c.responses:
			if !matches(resp, id) {
				c.logger.Debug("Ignoring SDO response for %04X:%02X while waiting for %s",
					binary.LittleEndian.Uint16(resp.Data[1:3]), resp.Data[3], id)
				continue
			}
			if resp.Data[0] == csAbort {
				code := AbortCode(binary.LittleEndian.Uint32(resp.Data[4:8]))
				return can.Frame{}, &AbortError{Code: code}
			}
			return resp, nil
		}
	}
}

// abort tells the drive the client gave up on a transfer
func (c *SDOClient) abort(id drive.ParameterID, code AbortCode) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(code))
	frame := c.request(csAbort, id, data)
	drive.LogCAN(c.logger, "TX", frame.ID, frame.Data[:], frame.Length)
	if err := c.bus.Publish(frame); err != nil {
		c.logger.Warn("Failed to send SDO abort for %s: %v", id, err)
	}
}

func matches(frame can.Frame, id drive.ParameterID) bool {
	return frame.Length >= 8 &&
		binary.LittleEndian.Uint16(frame.Data[1:3]) == id.Index &&
		frame.Data[3] == id.SubIndex
}

// encodeValue packs value little-endian into n bytes. Both the signed and the
// unsigned range of the width are accepted.
func encodeValue(value int64, n int) ([]byte, error) {
	bits := uint(8 * n)
	lo := -(int64(1) << (bits - 1))
	hi := int64(1)<<bits - 1
	if value < lo || value > hi {
		return nil, fmt.Errorf("value %d does not fit in %d bytes", value, n)
	}
	data := make([]byte, n)
	u := uint64(value)
	for i := 0; i < n; i++ {
		data[i] = byte(u >> (8 * uint(i)))
	}
	return data, nil
}

// decodeValue unpacks a little-endian value and sign-extends it from its width
func decodeValue(data []byte) int64 {
	var u uint64
	for i := len(data) - 1; i >= 0; i-- {
		u = u<<8 | uint64(data[i])
	}
	shift := uint(64 - 8*len(data))
	return int64(u<<shift) >> shift
}

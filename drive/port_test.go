package drive

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errNAK = errors.New("nak")

type write struct {
	ID    ParameterID
	Value int64
	At    time.Time
}

// fakePort records writes and replays a scripted position sequence
type fakePort struct {
	mu        sync.Mutex
	writes    []write
	reads     int
	positions []int64
	failOn    map[ParameterID]error
	readErr   error
}

func newFakePort(positions ...int64) *fakePort {
	return &fakePort{positions: positions, failOn: make(map[ParameterID]error)}
}

func (p *fakePort) Read(ctx context.Context, id ParameterID) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, &PortError{Op: "read", ID: id, Err: p.readErr}
	}
	if len(p.positions) == 0 {
		p.reads++
		return 0, nil
	}
	i := p.reads
	if i >= len(p.positions) {
		i = len(p.positions) - 1
	}
	p.reads++
	return p.positions[i], nil
}

func (p *fakePort) Write(ctx context.Context, id ParameterID, value int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failOn[id]; ok {
		return &PortError{Op: "write", ID: id, Err: err}
	}
	p.writes = append(p.writes, write{ID: id, Value: value, At: time.Now()})
	return nil
}

func (p *fakePort) fail(id ParameterID, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failOn, id)
		return
	}
	p.failOn[id] = err
}

func (p *fakePort) written() []write {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]write(nil), p.writes...)
}

func (p *fakePort) writtenIDs() []ParameterID {
	var ids []ParameterID
	for _, w := range p.written() {
		ids = append(ids, w.ID)
	}
	return ids
}

func (p *fakePort) readCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// fastConfig is the default profile with a desired velocity high enough for
// the simulator to finish test moves in milliseconds
func fastConfig() DriveConfig {
	config := DefaultConfig()
	for i := range config {
		if config[i].ID == RegDesiredVelocity {
			config[i].Value = 60000
		}
	}
	return config
}

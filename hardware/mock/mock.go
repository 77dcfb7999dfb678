// Package mock is in-memory hardware.Driver for tests and bench console.
package mock

import (
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/concentrator/hardware"
)

type Write struct {
	Channel uint32
	Token   string
}

type Driver struct {
	mu         sync.Mutex
	digital    map[uint32]byte
	analog     map[uint32]uint16
	digitalErr map[uint32]error
	analogErr  map[uint32]error
	writeErr   map[uint32]error
	writes     []Write
	closed     bool
}

var _ hardware.Driver = &Driver{}

func New() *Driver {
	return &Driver{
		digital:    make(map[uint32]byte),
		analog:     make(map[uint32]uint16),
		digitalErr: make(map[uint32]error),
		analogErr:  make(map[uint32]error),
		writeErr:   make(map[uint32]error),
	}
}

func (d *Driver) SetDigital(channel uint32, v byte) {
	d.mu.Lock()
	d.digital[channel] = v
	d.mu.Unlock()
}

func (d *Driver) SetAnalog(channel uint32, v uint16) {
	d.mu.Lock()
	d.analog[channel] = v
	d.mu.Unlock()
}

// FailDigital makes reads of channel return err until called again with nil.
func (d *Driver) FailDigital(channel uint32, err error) {
	d.mu.Lock()
	d.digitalErr[channel] = err
	d.mu.Unlock()
}

func (d *Driver) FailAnalog(channel uint32, err error) {
	d.mu.Lock()
	d.analogErr[channel] = err
	d.mu.Unlock()
}

func (d *Driver) FailWrite(channel uint32, err error) {
	d.mu.Lock()
	d.writeErr[channel] = err
	d.mu.Unlock()
}

func (d *Driver) ReadDigital(channel uint32) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.digitalErr[channel]; err != nil {
		return 0, err
	}
	return d.digital[channel], nil
}

func (d *Driver) ReadAnalog(channel uint32) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.analogErr[channel]; err != nil {
		return 0, err
	}
	return d.analog[channel], nil
}

// WriteIndicator records every attempt, including failed ones.
func (d *Driver) WriteIndicator(channel uint32, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.Errorf("mock driver closed")
	}
	d.writes = append(d.writes, Write{Channel: channel, Token: token})
	return d.writeErr[channel]
}

func (d *Driver) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	ws := make([]Write, len(d.writes))
	copy(ws, d.writes)
	return ws
}

func (d *Driver) ResetWrites() {
	d.mu.Lock()
	d.writes = nil
	d.mu.Unlock()
}

// Token returns last token written to channel, "" if none.
func (d *Driver) Token(channel uint32) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.writes) - 1; i >= 0; i-- {
		if d.writes[i].Channel == channel {
			return d.writes[i].Token
		}
	}
	return ""
}

func (d *Driver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

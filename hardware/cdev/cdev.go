// Package cdev reads digital sensor lines through GPIO character device (/dev/gpiochipN).
// Analog channels and indicators have no chardev interface, those calls go to Fallback driver.
package cdev

import (
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/concentrator/hardware"
	"github.com/temoto/concentrator/helpers"
	gpio "github.com/temoto/gpio-cdev-go"
)

const consumerLabel = "concentrator"

type Driver struct {
	mu       sync.Mutex
	chip     gpio.Chiper
	lines    map[uint32]gpio.Lineser
	fallback hardware.Driver
}

var _ hardware.Driver = &Driver{}

// Open requests each line as input on chip at path, e.g. "/dev/gpiochip1".
func Open(path string, lines []uint32, fallback hardware.Driver) (*Driver, error) {
	chip, err := gpio.Open(path, consumerLabel)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open chip=%s", path)
	}
	d, err := NewWithChip(chip, lines, fallback)
	if err != nil {
		_ = chip.Close()
		return nil, err
	}
	return d, nil
}

// NewWithChip takes ownership of chip.
func NewWithChip(chip gpio.Chiper, lines []uint32, fallback hardware.Driver) (*Driver, error) {
	if fallback == nil {
		return nil, errors.NotValidf("code error cdev fallback=nil")
	}
	d := &Driver{
		chip:     chip,
		lines:    make(map[uint32]gpio.Lineser, len(lines)),
		fallback: fallback,
	}
	for _, line := range lines {
		if _, ok := d.lines[line]; ok {
			continue
		}
		l, err := chip.OpenLines(gpio.GPIOHANDLE_REQUEST_INPUT, consumerLabel, line)
		if err != nil {
			_ = d.closeLines()
			return nil, errors.Annotatef(err, "gpio request input line=%d", line)
		}
		d.lines[line] = l
	}
	return d, nil
}

func (d *Driver) ReadDigital(channel uint32) (byte, error) {
	d.mu.Lock()
	l, ok := d.lines[channel]
	d.mu.Unlock()
	if !ok {
		return 0, errors.NotFoundf("gpio line=%d not requested", channel)
	}
	data, err := l.Read()
	if err != nil {
		return 0, errors.Annotatef(err, "gpio read line=%d", channel)
	}
	if data.Values[0] != 0 {
		return 1, nil
	}
	return 0, nil
}

func (d *Driver) ReadAnalog(channel uint32) (uint16, error) {
	return d.fallback.ReadAnalog(channel)
}

func (d *Driver) WriteIndicator(channel uint32, token string) error {
	return d.fallback.WriteIndicator(channel, token)
}

func (d *Driver) Close() error {
	errs := []error{d.closeLines()}
	if d.chip != nil {
		errs = append(errs, d.chip.Close())
	}
	errs = append(errs, d.fallback.Close())
	return helpers.FoldErrors(errs)
}

func (d *Driver) closeLines() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	errs := make([]error, 0, len(d.lines))
	for line, l := range d.lines {
		if err := l.Close(); err != nil && !gpio.IsClosed(err) {
			errs = append(errs, errors.Annotatef(err, "close line=%d", line))
		}
		delete(d.lines, line)
	}
	return helpers.FoldErrors(errs)
}

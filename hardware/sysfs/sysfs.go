// Package sysfs implements hardware.Driver over Linux sysfs files:
// GPIO value files, IIO ADC raw values and LED class triggers.
package sysfs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/juju/errors"
	"github.com/temoto/concentrator/hardware"
	"github.com/temoto/concentrator/log2"
	"github.com/temoto/concentrator/record"
)

const (
	DefaultGpioRoot = "/sys/class/gpio"
	DefaultAdcRoot  = "/sys/bus/iio/devices/iio:device0"
	DefaultLedsRoot = "/sys/class/leds"
	// BeagleBone user LEDs usr0..usr3
	DefaultLedName = "beaglebone:green:usr%d"
)

type Config struct {
	GpioRoot string
	AdcRoot  string
	LedsRoot string
	LedName  string // fmt pattern with single %d for indicator channel
	// Export digital channels as inputs on open. Not required when already exported by boot scripts.
	Export []uint32
}

type Driver struct {
	c   Config
	log *log2.Log
}

var _ hardware.Driver = &Driver{}

func New(c Config, log *log2.Log) (*Driver, error) {
	if c.GpioRoot == "" {
		c.GpioRoot = DefaultGpioRoot
	}
	if c.AdcRoot == "" {
		c.AdcRoot = DefaultAdcRoot
	}
	if c.LedsRoot == "" {
		c.LedsRoot = DefaultLedsRoot
	}
	if c.LedName == "" {
		c.LedName = DefaultLedName
	}
	d := &Driver{c: c, log: log}
	for _, ch := range c.Export {
		if err := d.ExportInput(ch); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Driver) Close() error { return nil }

// ExportInput makes gpioN visible and configures it as input.
func (d *Driver) ExportInput(channel uint32) error {
	dir := filepath.Join(d.c.GpioRoot, fmt.Sprintf("gpio%d", channel))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err = writeFile(filepath.Join(d.c.GpioRoot, "export"), strconv.FormatUint(uint64(channel), 10)); err != nil {
			return errors.Annotatef(err, "gpio export channel=%d", channel)
		}
	}
	if err := writeFile(filepath.Join(dir, "direction"), "in"); err != nil {
		return errors.Annotatef(err, "gpio direction channel=%d", channel)
	}
	d.log.Debugf("gpio%d exported as input", channel)
	return nil
}

func (d *Driver) ReadDigital(channel uint32) (byte, error) {
	path := filepath.Join(d.c.GpioRoot, fmt.Sprintf("gpio%d", channel), "value")
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Annotatef(err, "gpio read channel=%d", channel)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || (b[0] != '0' && b[0] != '1') {
		return 0, errors.NotValidf("gpio channel=%d value=%q", channel, b)
	}
	return b[0] - '0', nil
}

func (d *Driver) ReadAnalog(channel uint32) (uint16, error) {
	path := filepath.Join(d.c.AdcRoot, fmt.Sprintf("in_voltage%d_raw", channel))
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Annotatef(err, "adc read channel=%d", channel)
	}
	v, err := ParseRaw(b)
	if err != nil {
		return 0, errors.Annotatef(err, "adc channel=%d", channel)
	}
	return v, nil
}

func (d *Driver) WriteIndicator(channel uint32, token string) error {
	path := filepath.Join(d.c.LedsRoot, fmt.Sprintf(d.c.LedName, channel), "trigger")
	if err := writeFile(path, token); err != nil {
		return errors.Annotatef(err, "led trigger channel=%d token=%s", channel, token)
	}
	return nil
}

// ParseRaw parses up to record.FieldWidth leading decimal digits of IIO raw value, e.g. "512\n".
// Longer values are truncated like the board firmware did, "12345" reads as 1234.
func ParseRaw(b []byte) (uint16, error) {
	b = bytes.TrimSpace(b)
	n := 0
	for n < len(b) && n < record.FieldWidth && b[n] >= '0' && b[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, errors.NotValidf("raw value=%q", b)
	}
	v, err := strconv.ParseUint(string(b[:n]), 10, 16)
	if err != nil {
		return 0, errors.Annotatef(err, "raw value=%q", b)
	}
	return uint16(v), nil
}

// Attribute files must exist, kernel accepts one full-string write.
func writeFile(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	_, err = f.Write([]byte(s))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

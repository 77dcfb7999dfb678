// Package hardware defines Sensor I/O Driver boundary.
// Core code (sensor poller, status reporter) talks to sensors and indicators only through Driver.
package hardware

import "io"

// Indicator trigger tokens understood by kernel LED class.
const (
	TokenNone      = "none"
	TokenDefaultOn = "default-on"
	TokenHeartbeat = "heartbeat"
)

type Driver interface {
	io.Closer
	// ReadDigital returns 0 or 1.
	ReadDigital(channel uint32) (byte, error)
	// ReadAnalog returns raw ADC value.
	ReadAnalog(channel uint32) (uint16, error)
	// WriteIndicator writes one full token to indicator.
	WriteIndicator(channel uint32, token string) error
}

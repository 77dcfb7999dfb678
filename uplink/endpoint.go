package uplink

import (
	"context"
	"net"
	"strconv"

	"github.com/juju/errors"
	"github.com/temoto/concentrator/internal/types"
)

var (
	ErrSocketCreate = errors.New("socket create")
	ErrHangup       = errors.New("hangup")
	ErrClosing      = errors.New("uplink closing")
)

type Event uint8

const (
	EventWritable Event = iota + 1
	EventHangup
)

func (e Event) String() string {
	switch e {
	case EventWritable:
		return "writable"
	case EventHangup:
		return "hangup"
	}
	return "invalid"
}

// Connector creates fresh endpoint for every attempt.
// opened is called once after the socket is allocated, before connect.
// Allocation failure must have ErrSocketCreate as errors.Cause.
type Connector interface {
	Connect(ctx context.Context, opened func()) (Endpoint, error)
}

type Endpoint interface {
	// Await blocks without timeout until socket is writable or peer is gone.
	Await(ctx context.Context) (Event, error)
	Write(ctx context.Context, b []byte) error
	Close() error
}

// ConnectReason maps failed connect error to Broken reason.
func ConnectReason(err error) types.Reason {
	if ne, ok := errors.Cause(err).(net.Error); ok && ne.Timeout() {
		return types.ReasonTimeout
	}
	if errors.Cause(err) == context.DeadlineExceeded {
		return types.ReasonTimeout
	}
	return types.ReasonRefused
}

// ResolvePort returns address with 16-bit port byte-swapped when legacySwap is set.
// Some deployed collectors listen on port as seen by firmware that skipped host-to-network conversion.
func ResolvePort(address string, legacySwap bool) (string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", errors.Annotatef(err, "collector address=%s", address)
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return "", errors.NotValidf("collector address=%s port", address)
	}
	if legacySwap {
		p = (p>>8 | p<<8) & 0xffff
	}
	return net.JoinHostPort(host, strconv.FormatUint(p, 10)), nil
}

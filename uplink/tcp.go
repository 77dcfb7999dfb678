//go:build unix

package uplink

import (
	"context"
	"expvar"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/concentrator/helpers"
	"golang.org/x/sys/unix"
)

// Far past deadline interrupts blocked socket operation.
var aLongTimeAgo = time.Unix(1, 0)

type TCPConnector struct {
	Address      string
	Timeout      time.Duration
	WriteTimeout time.Duration
	// Sent receives number of bytes written by every endpoint, optional.
	Sent *expvar.Int
}

func (tc *TCPConnector) Connect(ctx context.Context, opened func()) (Endpoint, error) {
	var once sync.Once
	d := net.Dialer{
		Timeout:   tc.Timeout,
		KeepAlive: -1,
		Control: func(network, address string, c syscall.RawConn) error {
			if opened != nil {
				once.Do(opened)
			}
			return nil
		},
	}
	conn, err := d.DialContext(ctx, "tcp", tc.Address)
	if err != nil {
		if isSocketCreate(err) {
			return nil, errors.Wrap(err, ErrSocketCreate)
		}
		return nil, errors.Annotatef(err, "connect address=%s", tc.Address)
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, errors.Errorf("code error connect returned %T", conn)
	}
	sent := tc.Sent
	if sent == nil {
		sent = new(expvar.Int)
	}
	e := &tcpEndpoint{
		conn:         tcp,
		w:            helpers.NewStatWriter(tcp, sent),
		writeTimeout: tc.WriteTimeout,
	}
	return e, nil
}

func isSocketCreate(err error) bool {
	oe, ok := err.(*net.OpError)
	if !ok {
		return false
	}
	se, ok := oe.Err.(*os.SyscallError)
	return ok && se.Syscall == "socket"
}

type tcpEndpoint struct {
	conn         *net.TCPConn
	w            io.Writer
	writeTimeout time.Duration
}

func (e *tcpEndpoint) Await(ctx context.Context) (Event, error) {
	rc, err := e.conn.SyscallConn()
	if err != nil {
		return 0, errors.Annotate(err, "await")
	}
	// Write deadline left by previous send would fail readiness wait on healthy socket.
	if err = e.conn.SetWriteDeadline(time.Time{}); err != nil {
		return 0, errors.Annotate(err, "await")
	}
	stop := context.AfterFunc(ctx, func() { _ = e.conn.SetWriteDeadline(aLongTimeAgo) })
	defer stop()

	var ev Event
	var perr error
	err = rc.Write(func(fd uintptr) bool {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT | pollRdHup}}
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			return false
		}
		if err != nil {
			perr = err
			return true
		}
		if n == 0 {
			// not ready, let runtime netpoller wait
			return false
		}
		re := fds[0].Revents
		switch {
		case re&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL|pollRdHup) != 0:
			ev = EventHangup
		case re&unix.POLLOUT != 0:
			ev = EventWritable
		default:
			return false
		}
		return true
	})
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err != nil {
		return 0, errors.Annotate(err, "await")
	}
	if perr != nil {
		return 0, errors.Annotate(os.NewSyscallError("poll", perr), "await")
	}
	return ev, nil
}

func (e *tcpEndpoint) Write(ctx context.Context, b []byte) error {
	var deadline time.Time
	if e.writeTimeout > 0 {
		deadline = time.Now().Add(e.writeTimeout)
	}
	if err := e.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Annotate(err, "write")
	}
	stop := context.AfterFunc(ctx, func() { _ = e.conn.SetWriteDeadline(aLongTimeAgo) })
	defer stop()
	if err := helpers.WriteAll(e.w, b); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Annotate(err, "write")
	}
	return nil
}

func (e *tcpEndpoint) Close() error { return e.conn.Close() }

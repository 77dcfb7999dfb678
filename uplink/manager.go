// Package uplink keeps outbound session to collector.
//
// Manager runs single goroutine state machine:
//   - allocate fresh endpoint (Connecting), connect
//   - on failure: close, report Broken(timeout|refused), back off, repeat
//   - connected: wait for write readiness, send latest snapshot, wait send interval, repeat
//   - hangup or write error: report Broken(hangup), back off, new endpoint
//   - socket allocation failure is terminal, manager idles until shutdown
package uplink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"
	"github.com/temoto/concentrator/helpers"
	"github.com/temoto/concentrator/internal/types"
	"github.com/temoto/concentrator/log2"
	"github.com/temoto/concentrator/record"
	"github.com/temoto/concentrator/sensor"
	"github.com/temoto/concentrator/tele"
)

const (
	DefaultRetryDelay   = 10 * time.Second
	DefaultSendInterval = 10 * time.Second
)

// StatusReflector shows link state, implemented by status.Reporter.
type StatusReflector interface {
	ReflectConnection(types.ConnState)
}

type Options struct {
	Log          *log2.Log
	Connector    Connector
	Latest       *sensor.Latest
	Status       StatusReflector
	Tele         tele.Teler // optional
	RetryDelay   time.Duration
	RetryMax     time.Duration
	RetryFactor  float32
	SendInterval time.Duration
}

type Manager struct {
	log          *log2.Log
	conn         Connector
	latest       *sensor.Latest
	status       StatusReflector
	tele         tele.Teler
	backoff      helpers.Backoff
	sendInterval time.Duration
	state        atomic.Value // types.ConnState
	stat         SessionStat
	lastSend     atomic_clock.Clock

	// test code replaces sleep
	sleep func(ctx context.Context, d time.Duration) error
}

func NewManager(opt Options) (*Manager, error) {
	if opt.Connector == nil || opt.Latest == nil || opt.Status == nil {
		return nil, errors.NotValidf("code error uplink connector=%v latest=%v status=%v", opt.Connector, opt.Latest, opt.Status)
	}
	if opt.RetryDelay <= 0 {
		opt.RetryDelay = DefaultRetryDelay
	}
	if opt.RetryMax < opt.RetryDelay {
		opt.RetryMax = opt.RetryDelay
	}
	if opt.SendInterval <= 0 {
		opt.SendInterval = DefaultSendInterval
	}
	if opt.Tele == nil {
		opt.Tele = tele.Noop{}
	}
	m := &Manager{
		log:    opt.Log,
		conn:   opt.Connector,
		latest: opt.Latest,
		status: opt.Status,
		tele:   opt.Tele,
		backoff: helpers.Backoff{
			Min: opt.RetryDelay,
			Max: opt.RetryMax,
			K:   opt.RetryFactor,
		},
		sendInterval: opt.SendInterval,
	}
	m.state.Store(types.ConnState{State: types.StateDisconnected})
	m.sleep = sleep
	return m, nil
}

func (m *Manager) State() types.ConnState { return m.state.Load().(types.ConnState) }
func (m *Manager) Stat() *SessionStat     { return &m.stat }
func (m *Manager) LastSend() time.Time {
	if m.lastSend.IsZero() {
		return time.Time{}
	}
	return time.Now().Add(-atomic_clock.Since(&m.lastSend))
}

// Run blocks until ctx is done or a is stopped, returns the cause.
// Only cancellation ends Run, every link error is handled inside.
func (m *Manager) Run(ctx context.Context, a *alive.Alive) error {
	if !a.Add(1) {
		return ErrClosing
	}
	defer a.Done()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.StopChan():
			cancel()
		case <-ctx.Done():
		}
	}()
	defer m.transition(types.ConnState{State: types.StateDisconnected})

	for {
		m.stat.Attempts.Add(1)
		ep, err := m.conn.Connect(ctx, func() {
			m.transition(types.ConnState{State: types.StateConnecting})
		})
		if ctx.Err() != nil {
			if ep != nil {
				ep.Close()
			}
			return ctx.Err()
		}
		if err != nil {
			if errors.Cause(err) == ErrSocketCreate {
				m.log.Errorf("uplink %v, idle until restart", err)
				m.transition(types.ConnState{State: types.StateSocketCreateFailed})
				<-ctx.Done()
				return ctx.Err()
			}
			reason := ConnectReason(err)
			m.log.Errorf("uplink reason=%s err=%v", reason, err)
			if err = m.fail(ctx, nil, reason); err != nil {
				return err
			}
			continue
		}

		m.stat.Connects.Add(1)
		m.backoff.Reset()
		m.transition(types.ConnState{State: types.StateConnected})
		err = m.session(ctx, ep)
		if ctx.Err() != nil {
			ep.Close()
			return ctx.Err()
		}
		m.log.Errorf("uplink session err=%v", err)
		if err = m.fail(ctx, ep, types.ReasonHangup); err != nil {
			return err
		}
	}
}

// session sends payloads until endpoint fails. Never returns nil.
func (m *Manager) session(ctx context.Context, ep Endpoint) error {
	for {
		ev, err := ep.Await(ctx)
		if err != nil {
			return err
		}
		if ev == EventHangup {
			return ErrHangup
		}

		snap := m.latest.Take()
		packets := snap.Packets()
		payload, err := record.Encode(packets)
		if err != nil {
			// sensor value out of wire range, next snapshot may be fine
			m.stat.EncodeErrors.Add(1)
			m.log.Errorf("uplink encode seq=%d err=%v", snap.Seq(), err)
		} else {
			if m.log.Enabled(log2.LDebug) {
				for i, p := range packets {
					m.log.Debugf("uplink send seq=%d packet=%d %s", snap.Seq(), i, record.FromPacket(p))
				}
			}
			if err = ep.Write(ctx, payload); err != nil {
				return err
			}
			m.stat.Payloads.Add(1)
			m.stat.Bytes.Add(int64(len(payload)))
			m.lastSend.SetNow()
			m.tele.Payload(payload)
		}

		if err = m.sleep(ctx, m.sendInterval); err != nil {
			return err
		}
	}
}

// fail closes endpoint, reports Broken once and sleeps one backoff delay.
func (m *Manager) fail(ctx context.Context, ep Endpoint, reason types.Reason) error {
	if ep != nil {
		if err := ep.Close(); err != nil {
			m.log.Debugf("uplink close err=%v", err)
		}
	}
	m.stat.broken(reason)
	m.transition(types.ConnState{State: types.StateBroken, Reason: reason})
	delay := m.backoff.Failure()
	m.stat.Backoffs.Add(1)
	m.log.Debugf("uplink reconnect delay=%s", delay)
	return m.sleep(ctx, delay)
}

func (m *Manager) transition(cs types.ConnState) {
	prev := m.State()
	m.state.Store(cs)
	m.log.Debugf("uplink state %s -> %s", prev, cs)
	m.status.ReflectConnection(cs)
	m.tele.State(cs)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

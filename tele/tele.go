package tele

import (
	"context"
	"expvar"
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/concentrator/internal/types"
	"github.com/temoto/concentrator/log2"
)

const DefaultQueueSize = 16

type Stat struct {
	Sent    expvar.Int
	Failed  expvar.Int
	Dropped expvar.Int
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"sent":%d,"failed":%d,"dropped":%d}`, s.Sent.Value(), s.Failed.Value(), s.Dropped.Value())
}

type kind uint8

const (
	kindPayload kind = iota + 1
	kindState
)

type message struct {
	kind    kind
	payload []byte
}

// Tele contract:
// - Init() fails only with invalid config, network issues ignored
// - Payload/State never block, overflow of bounded queue drops newest message
// - Close() waits for worker and disconnects transport
type tele struct {
	config    Config
	log       *log2.Log
	transport Transporter
	alive     *alive.Alive
	q         chan message
	stat      Stat
}

func New() Teler { return &tele{} }

// test code sets transport
func NewWithTransporter(trans Transporter) Teler { return &tele{transport: trans} }

func (t *tele) Init(ctx context.Context, log *log2.Log, teleConfig Config) error {
	t.config = teleConfig
	t.log = log
	if !t.config.Enabled {
		return nil
	}
	if t.config.LogDebug {
		t.log.SetLevel(log2.LDebug)
	}
	if t.config.MqttBroker == "" {
		return errors.NotValidf("tele enabled with empty mqtt_broker")
	}
	size := t.config.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}

	if t.transport == nil { // production path
		t.transport = &transportMqtt{}
	}
	if err := t.transport.Init(ctx, log, t.config); err != nil {
		return errors.Annotate(err, "tele transport")
	}
	t.q = make(chan message, size)
	t.alive = alive.NewAlive()
	t.alive.Add(1)
	go t.worker()
	return nil
}

func (t *tele) Close() {
	if t.alive == nil {
		return
	}
	t.alive.Stop()
	t.alive.Wait()
	t.transport.Close()
}

func (t *tele) Payload(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	t.push(message{kind: kindPayload, payload: cp})
}

func (t *tele) State(cs types.ConnState) {
	t.push(message{kind: kindState, payload: []byte(cs.String())})
}

func (t *tele) Stat() *Stat { return &t.stat }

func (t *tele) push(m message) {
	if t.q == nil || !t.alive.IsRunning() {
		return
	}
	select {
	case t.q <- m:
	default:
		t.stat.Dropped.Add(1)
		t.log.Debugf("tele queue full, dropped kind=%d", m.kind)
	}
}

func (t *tele) worker() {
	defer t.alive.Done()
	stopch := t.alive.StopChan()
	for {
		select {
		case m := <-t.q:
			t.send(m)
		case <-stopch:
			return
		}
	}
}

func (t *tele) send(m message) {
	var ok bool
	switch m.kind {
	case kindPayload:
		ok = t.transport.SendPayload(m.payload)
	case kindState:
		ok = t.transport.SendState(m.payload)
	}
	if ok {
		t.stat.Sent.Add(1)
	} else {
		t.stat.Failed.Add(1)
	}
}

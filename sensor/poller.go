package sensor

import (
	"context"
	"expvar"
	"fmt"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"
	"github.com/temoto/concentrator/hardware"
	"github.com/temoto/concentrator/log2"
)

const DefaultPollInterval = 2 * time.Second

// Reflector shows sensor health, implemented by status.Reporter.
type Reflector interface {
	ReflectSensor(digital byte)
}

type PollStat struct {
	Polls          expvar.Int
	ReadErrors     expvar.Int
	DigitalChanges expvar.Int
	AnalogChanges  expvar.Int
}

func (ps *PollStat) String() string {
	return fmt.Sprintf(`{"polls":%d,"read_errors":%d,"digital_changes":%d,"analog_changes":%d}`,
		ps.Polls.Value(), ps.ReadErrors.Value(), ps.DigitalChanges.Value(), ps.AnalogChanges.Value())
}

// Poller is the only writer of sensor values.
// It owns packet sequence and hands immutable snapshots to Latest.
type Poller struct {
	log     *log2.Log
	drv     hardware.Driver
	reflect Reflector
	slots   []SlotConfig
	packets []Packet
	out     *Latest
	seq     uint64
	stat    PollStat
	last    atomic_clock.Clock
}

func NewPoller(log *log2.Log, drv hardware.Driver, slots []SlotConfig, reflect Reflector) (*Poller, error) {
	if drv == nil || reflect == nil {
		return nil, errors.NotValidf("code error poller driver=%v reflector=%v", drv, reflect)
	}
	packets, err := InitPackets(slots)
	if err != nil {
		return nil, errors.Annotate(err, "sensor init")
	}
	p := &Poller{
		log:     log,
		drv:     drv,
		reflect: reflect,
		slots:   append([]SlotConfig(nil), slots...),
		packets: packets,
	}
	p.out = NewLatest(NewSnapshot(0, packets))
	return p, nil
}

func (p *Poller) Latest() *Latest { return p.out }
func (p *Poller) Stat() *PollStat { return &p.stat }
func (p *Poller) LastPoll() time.Time {
	if p.last.IsZero() {
		return time.Time{}
	}
	return time.Now().Add(-atomic_clock.Since(&p.last))
}

// PollOnce reads every valid slot once and returns true if any value changed.
// Only digital change calls Reflector, analog change is stored silently.
// Failed read leaves stored value unchanged.
func (p *Poller) PollOnce() bool {
	p.stat.Polls.Add(1)
	p.last.SetNow()
	digitalChanged, analogChanged := false, false
	for i := range p.slots {
		slot := &p.slots[i]
		if !slot.Valid {
			continue
		}
		r := &p.packets[i].Reading

		if v, err := p.drv.ReadDigital(slot.DigitalChannel); err != nil {
			p.stat.ReadErrors.Add(1)
			p.log.Errorf("sensor=%s digital channel=%d err=%v", slot.Name, slot.DigitalChannel, err)
		} else {
			if v != 0 {
				v = 1
			}
			p.log.Debugf("sensor=%s digital=%d", slot.Name, v)
			if v != r.Digital {
				r.Digital = v
				digitalChanged = true
				p.stat.DigitalChanges.Add(1)
			}
		}

		if v, err := p.drv.ReadAnalog(slot.AnalogChannel); err != nil {
			p.stat.ReadErrors.Add(1)
			p.log.Errorf("sensor=%s analog channel=%d err=%v", slot.Name, slot.AnalogChannel, err)
		} else {
			p.log.Debugf("sensor=%s analog=%d", slot.Name, v)
			if v != r.Analog {
				r.Analog = v
				analogChanged = true
				p.stat.AnalogChanges.Add(1)
			}
		}
	}

	if digitalChanged && len(p.packets) != 0 {
		p.reflect.ReflectSensor(p.packets[0].Reading.Digital)
	}
	if digitalChanged || analogChanged {
		p.seq++
		p.out.Publish(NewSnapshot(p.seq, p.packets))
		return true
	}
	return false
}

// Run polls every interval until ctx is done or a is stopped.
func (p *Poller) Run(ctx context.Context, a *alive.Alive, interval time.Duration) {
	if !a.Add(1) {
		return
	}
	defer a.Done()
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p.log.Debugf("poller start slots=%d interval=%s", len(p.slots), interval)
	t := time.NewTicker(interval)
	defer t.Stop()
	stopch := a.StopChan()
	for {
		p.PollOnce()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		case <-stopch:
			return
		}
	}
}

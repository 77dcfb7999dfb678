// Package status maps sensor and link states to indicator patterns.
// All writes are fire-and-forget: failure is logged and counted, never retried.
package status

import (
	"expvar"
	"fmt"
	"sort"
	"sync"

	"github.com/temoto/concentrator/hardware"
	"github.com/temoto/concentrator/internal/types"
	"github.com/temoto/concentrator/log2"
)

type Pattern uint8

const (
	Off Pattern = iota
	SteadyOn
	Heartbeat
)

func (p Pattern) Token() string {
	switch p {
	case SteadyOn:
		return hardware.TokenDefaultOn
	case Heartbeat:
		return hardware.TokenHeartbeat
	}
	return hardware.TokenNone
}

func (p Pattern) String() string {
	switch p {
	case Off:
		return "off"
	case SteadyOn:
		return "steady-on"
	case Heartbeat:
		return "heartbeat"
	}
	return fmt.Sprintf("Pattern(%d)", uint8(p))
}

// Link state to pattern. Broken is SteadyOn for every reason.
var connPatterns = map[types.State]Pattern{
	types.StateDisconnected:       Off,
	types.StateSocketCreateFailed: Off,
	types.StateConnecting:         SteadyOn,
	types.StateConnected:          Heartbeat,
	types.StateBroken:             SteadyOn,
}

func ConnectionPattern(cs types.ConnState) Pattern {
	if p, ok := connPatterns[cs.State]; ok {
		return p
	}
	return Off
}

func SensorPattern(digital byte) Pattern {
	if digital != 0 {
		return SteadyOn
	}
	return Off
}

type IndicatorWriter interface {
	WriteIndicator(channel uint32, token string) error
}

type Config struct {
	Sensor     []uint32
	Connection []uint32
}

type group uint8

const (
	groupSensor group = iota
	groupConnection
)

type ReportStat struct {
	Writes   expvar.Int
	Failures expvar.Int
}

type Reporter struct {
	log    *log2.Log
	w      IndicatorWriter
	groups map[group][]uint32
	// actuator file accepts only full-string writes, one writer per channel at a time
	locks map[uint32]*sync.Mutex
	stat  ReportStat
}

func NewReporter(log *log2.Log, w IndicatorWriter, c Config) *Reporter {
	r := &Reporter{
		log: log,
		w:   w,
		groups: map[group][]uint32{
			groupSensor:     append([]uint32(nil), c.Sensor...),
			groupConnection: append([]uint32(nil), c.Connection...),
		},
		locks: make(map[uint32]*sync.Mutex),
	}
	for _, chs := range r.groups {
		for _, ch := range chs {
			if _, ok := r.locks[ch]; !ok {
				r.locks[ch] = &sync.Mutex{}
			}
		}
	}
	return r
}

func (r *Reporter) Stat() *ReportStat { return &r.stat }

// Init turns every configured indicator off.
func (r *Reporter) Init() {
	for _, ch := range r.Channels() {
		r.Set(ch, Off)
	}
}

func (r *Reporter) ReflectSensor(digital byte) {
	r.reflect(groupSensor, SensorPattern(digital))
}

func (r *Reporter) ReflectConnection(cs types.ConnState) {
	p := ConnectionPattern(cs)
	r.log.Debugf("connection state=%s pattern=%s", cs, p)
	r.reflect(groupConnection, p)
}

// Set writes pattern to one channel. Unconfigured channel is written without serialization.
func (r *Reporter) Set(channel uint32, p Pattern) {
	if mu, ok := r.locks[channel]; ok {
		mu.Lock()
		defer mu.Unlock()
	}
	r.stat.Writes.Add(1)
	if err := r.w.WriteIndicator(channel, p.Token()); err != nil {
		r.stat.Failures.Add(1)
		r.log.Errorf("indicator channel=%d pattern=%s err=%v", channel, p, err)
	}
}

// Channels returns sorted unique list of configured indicators.
func (r *Reporter) Channels() []uint32 {
	chs := make([]uint32, 0, len(r.locks))
	for ch := range r.locks {
		chs = append(chs, ch)
	}
	sort.Slice(chs, func(i, j int) bool { return chs[i] < chs[j] })
	return chs
}

func (r *Reporter) reflect(g group, p Pattern) {
	for _, ch := range r.groups[g] {
		r.Set(ch, p)
	}
}

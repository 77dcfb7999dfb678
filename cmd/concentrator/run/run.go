// Package run is the service mode: poll sensors, keep collector session, drive indicators.
package run

import (
	"context"
	"expvar"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/concentrator/cmd/concentrator/subcmd"
	"github.com/temoto/concentrator/hardware"
	"github.com/temoto/concentrator/log2"
	"github.com/temoto/concentrator/sensor"
	"github.com/temoto/concentrator/state"
	"github.com/temoto/concentrator/status"
	"github.com/temoto/concentrator/tele"
	"github.com/temoto/concentrator/uplink"
)

var Mod = subcmd.Mod{Name: "run", Usage: "run  (default) service mode", Main: Main}

type System struct {
	Log      *log2.Log
	Driver   hardware.Driver
	Reporter *status.Reporter
	Poller   *sensor.Poller
	Manager  *uplink.Manager
	Tele     tele.Teler
	// written bytes including partial writes of failed sessions
	WireBytes expvar.Int
}

// Build wires components from config, nothing is started.
// drv may be nil, then config selects driver.
func Build(ctx context.Context, log *log2.Log, config *state.Config, drv hardware.Driver, teler tele.Teler) (*System, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Annotate(err, "config")
	}
	sys := &System{Log: log, Tele: teler}
	if drv == nil {
		var err error
		if drv, err = state.OpenDriver(prefixed(log, "hardware: "), config.Hardware, config.DigitalChannels()); err != nil {
			return nil, err
		}
	}
	sys.Driver = drv

	statusConfig, _ := config.StatusConfig()
	sys.Reporter = status.NewReporter(prefixed(log, "status: "), drv, statusConfig)

	slots, _ := config.Slots()
	poller, err := sensor.NewPoller(prefixed(log, "sensor: "), drv, slots, sys.Reporter)
	if err != nil {
		return nil, err
	}
	sys.Poller = poller

	if sys.Tele == nil {
		sys.Tele = tele.New()
	}
	if err = sys.Tele.Init(ctx, prefixed(log, "tele: "), config.Tele); err != nil {
		return nil, err
	}

	addr, _ := config.CollectorAddress()
	opt := config.UplinkOptions()
	opt.Log = prefixed(log, "uplink: ")
	opt.Connector = &uplink.TCPConnector{
		Address:      addr,
		Timeout:      config.ConnectTimeout(),
		WriteTimeout: config.WriteTimeout(),
		Sent:         &sys.WireBytes,
	}
	opt.Latest = poller.Latest()
	opt.Status = sys.Reporter
	opt.Tele = sys.Tele
	if sys.Manager, err = uplink.NewManager(opt); err != nil {
		return nil, err
	}
	log.Infof("collector=%s sensors=%d", addr, len(slots))
	return sys, nil
}

// Run blocks until a is stopped.
func (sys *System) Run(ctx context.Context, a *alive.Alive, config *state.Config) {
	sys.Reporter.Init()
	go sys.Poller.Run(ctx, a, config.PollInterval())
	go func() { _ = sys.Manager.Run(ctx, a) }()
	a.Wait()
}

func (sys *System) Close() error {
	sys.Log.Infof("stat poll=%s uplink=%s wire_bytes=%d", sys.Poller.Stat(), sys.Manager.Stat(), sys.WireBytes.Value())
	sys.Tele.Close()
	sys.Reporter.Init()
	return sys.Driver.Close()
}

func Main(ctx context.Context, env *subcmd.Env) error {
	sys, err := Build(ctx, env.Log, env.Config, nil, nil)
	if err != nil {
		return err
	}

	a := alive.NewAlive()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		env.Log.Infof("signal=%v, stopping", s)
		subcmd.SdNotify(env.Log, daemon.SdNotifyStopping)
		a.Stop()
	}()

	subcmd.SdNotify(env.Log, daemon.SdNotifyReady)
	env.Log.Debugf("init complete")
	sys.Run(ctx, a, env.Config)
	return sys.Close()
}

func prefixed(log *log2.Log, prefix string) *log2.Log {
	l := log.Clone(log.Level())
	l.SetPrefix(prefix)
	return l
}

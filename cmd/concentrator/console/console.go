// Package console is interactive bench tool: poll sensors, encode payload, set indicators.
// No collector session is made.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/concentrator/cmd/concentrator/subcmd"
	"github.com/temoto/concentrator/hardware"
	"github.com/temoto/concentrator/helpers/cli"
	"github.com/temoto/concentrator/record"
	"github.com/temoto/concentrator/sensor"
	"github.com/temoto/concentrator/state"
	"github.com/temoto/concentrator/status"
)

const usage = `commands:
- poll            read all valid sensors once
- show            print latest snapshot
- encode          print collector payload of latest snapshot
- read CH         raw digital and analog read of channel
- led CH PATTERN  set indicator, PATTERN: off on heartbeat
- leds-off        all configured indicators off
- stat            poller counters
- help
- exit`

var Mod = subcmd.Mod{Name: "console", Usage: "console  interactive bench tool", Main: Main}

type Console struct {
	w        io.Writer
	drv      hardware.Driver
	poller   *sensor.Poller
	reporter *status.Reporter
	exit     func()
}

func New(w io.Writer, env *subcmd.Env, drv hardware.Driver) (*Console, error) {
	statusConfig, err := env.Config.StatusConfig()
	if err != nil {
		return nil, err
	}
	slots, err := env.Config.Slots()
	if err != nil {
		return nil, err
	}
	c := &Console{w: w, drv: drv}
	c.reporter = status.NewReporter(env.Log, drv, statusConfig)
	if c.poller, err = sensor.NewPoller(env.Log, drv, slots, c.reporter); err != nil {
		return nil, err
	}
	return c, nil
}

func Main(ctx context.Context, env *subcmd.Env) error {
	if err := env.Config.Validate(); err != nil {
		return errors.Annotate(err, "config")
	}
	drv, err := state.OpenDriver(env.Log, env.Config.Hardware, env.Config.DigitalChannels())
	if err != nil {
		return err
	}
	defer drv.Close()
	c, err := New(os.Stdout, env, drv)
	if err != nil {
		return err
	}
	c.exit = func() {
		c.reporter.Init()
		drv.Close()
		os.Exit(0)
	}
	fmt.Fprintln(c.w, usage)
	return cli.MainLoop("concentrator", c.Exec, c.Complete, c.exit)
}

func (c *Console) Exec(line string) {
	if err := c.exec(strings.Fields(line)); err != nil {
		fmt.Fprintf(c.w, "error: %v\n", err)
	}
}

var commands = []prompt.Suggest{
	{Text: "poll", Description: "read all valid sensors once"},
	{Text: "show", Description: "print latest snapshot"},
	{Text: "encode", Description: "print collector payload"},
	{Text: "read", Description: "raw read CH"},
	{Text: "led", Description: "set indicator CH PATTERN"},
	{Text: "leds-off", Description: "all indicators off"},
	{Text: "stat", Description: "poller counters"},
	{Text: "help"},
	{Text: "exit"},
}

func (c *Console) Complete(d prompt.Document) []prompt.Suggest {
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
}

func (c *Console) exec(args []string) error {
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "help":
		fmt.Fprintln(c.w, usage)
	case "exit", "quit":
		if c.exit != nil {
			c.exit()
		}
	case "poll":
		changed := c.poller.PollOnce()
		fmt.Fprintf(c.w, "changed=%t\n", changed)
		c.show()
	case "show":
		c.show()
	case "encode":
		snap := c.poller.Latest().Take()
		b, err := record.Encode(snap.Packets())
		if err != nil {
			return err
		}
		fmt.Fprintf(c.w, "%s\n", b)
	case "read":
		if len(args) != 2 {
			return errors.NotValidf("syntax: read CH")
		}
		ch, err := parseChannel(args[1])
		if err != nil {
			return err
		}
		d, derr := c.drv.ReadDigital(ch)
		a, aerr := c.drv.ReadAnalog(ch)
		fmt.Fprintf(c.w, "channel=%d digital=%d err=%v analog=%d err=%v\n", ch, d, derr, a, aerr)
	case "led":
		if len(args) != 3 {
			return errors.NotValidf("syntax: led CH PATTERN")
		}
		ch, err := parseChannel(args[1])
		if err != nil {
			return err
		}
		p, err := parsePattern(args[2])
		if err != nil {
			return err
		}
		c.reporter.Set(ch, p)
	case "leds-off":
		c.reporter.Init()
	case "stat":
		fmt.Fprintf(c.w, "poll=%s indicator_writes=%d indicator_failures=%d\n",
			c.poller.Stat(), c.reporter.Stat().Writes.Value(), c.reporter.Stat().Failures.Value())
	default:
		return errors.NotFoundf("command=%s", args[0])
	}
	return nil
}

func (c *Console) show() {
	snap := c.poller.Latest().Take()
	fmt.Fprintf(c.w, "seq=%d\n", snap.Seq())
	for i, p := range snap.Packets() {
		fmt.Fprintf(c.w, "%d %s\n", i, p)
	}
}

func parseChannel(s string) (uint32, error) {
	x, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.NotValidf("channel=%s", s)
	}
	return uint32(x), nil
}

func parsePattern(s string) (status.Pattern, error) {
	switch s {
	case "off", hardware.TokenNone:
		return status.Off, nil
	case "on", hardware.TokenDefaultOn:
		return status.SteadyOn, nil
	case hardware.TokenHeartbeat:
		return status.Heartbeat, nil
	}
	return status.Off, errors.NotValidf("pattern=%s", s)
}

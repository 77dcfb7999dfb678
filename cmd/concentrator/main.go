package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/temoto/concentrator/cmd/concentrator/console"
	"github.com/temoto/concentrator/cmd/concentrator/decode"
	"github.com/temoto/concentrator/cmd/concentrator/run"
	"github.com/temoto/concentrator/cmd/concentrator/subcmd"
	"github.com/temoto/concentrator/log2"
	"github.com/temoto/concentrator/state"
)

var log = log2.NewStderr(log2.LInfo)

var modules = []subcmd.Mod{
	run.Mod,
	console.Mod,
	decode.Mod,
}

func main() {
	flagConfig := flag.String("config", state.DefaultConfigName, "")
	flagEnv := flag.String("env", state.DefaultEnvName, "dotenv file relative to config dir, empty to skip")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [command] [args]\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), "Commands:")
		for _, m := range modules {
			fmt.Fprintf(flag.CommandLine.Output(), "  %s\n", strings.ReplaceAll(m.Usage, "\n", "\n    "))
		}
	}
	flag.Parse()

	command := "run"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	mod, err := subcmd.Parse(command, modules)
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	if subcmd.SdNotify(log, "STATUS=start") {
		// we're under systemd, assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	}

	env := &subcmd.Env{Log: log, Args: flag.Args()}
	if len(env.Args) > 0 {
		env.Args = env.Args[1:]
	}
	if !mod.NoConfig {
		fs := state.NewOsFullReader()
		config := state.MustReadConfig(log, fs, *flagConfig)
		if err = config.ApplyEnv(log, fs, *flagEnv, os.Getenv); err != nil {
			log.Fatal(errors.ErrorStack(err))
		}
		if config.LogDebug {
			log.SetLevel(log2.LDebug)
		}
		log.Debugf("config=%+v", config)
		env.Config = config
	}

	if err = mod.Main(context.Background(), env); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}

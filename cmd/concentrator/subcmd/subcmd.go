// Support sub-commands in concentrator application.
package subcmd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/concentrator/log2"
	"github.com/temoto/concentrator/state"
)

type Env struct {
	Log    *log2.Log
	Config *state.Config // nil for NoConfig modules
	Args   []string
}

type Mod struct {
	Name     string
	Usage    string
	NoConfig bool
	Main     func(context.Context, *Env) error
}

func Parse(command string, modules []Mod) (*Mod, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}

	var found *Mod
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			found = m
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("unknown command='%s'", command)
	}
	return found, nil
}

// SdNotify returns true when running under systemd.
func SdNotify(log *log2.Log, s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Error(errors.Annotate(err, "sdnotify"))
	}
	return ok
}

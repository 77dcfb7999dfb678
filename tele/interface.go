package tele

import (
	"context"

	"github.com/temoto/concentrator/internal/types"
	"github.com/temoto/concentrator/log2"
)

// Teler mirrors collector traffic and link state to MQTT broker.
// Payload and State never block the caller, messages may be lost.
type Teler interface {
	Init(context.Context, *log2.Log, Config) error
	Close()
	Payload([]byte)
	State(types.ConnState)
}

type Noop struct{}

var _ Teler = Noop{} // compile-time interface test

func (Noop) Init(context.Context, *log2.Log, Config) error { return nil }

func (Noop) Close() {}

func (Noop) Payload([]byte) {}

func (Noop) State(types.ConnState) {}

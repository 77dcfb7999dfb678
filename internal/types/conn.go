package types

import "fmt"

// State of collector link, owned and mutated by uplink.Manager only.
type State uint8

const (
	StateDisconnected State = iota
	StateSocketCreateFailed
	StateConnecting
	StateConnected
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateSocketCreateFailed:
		return "socket-create-failed"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBroken:
		return "broken"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Reason why link is Broken.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonTimeout
	ReasonRefused // connect failed for any reason except timeout
	ReasonHangup  // established session failed: peer close, socket error, write error
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTimeout:
		return "timeout"
	case ReasonRefused:
		return "refused"
	case ReasonHangup:
		return "hangup"
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

type ConnState struct {
	State  State
	Reason Reason
}

func (cs ConnState) String() string {
	if cs.Reason == ReasonNone {
		return cs.State.String()
	}
	return cs.State.String() + "(" + cs.Reason.String() + ")"
}

// Fatal means no further transitions without process restart.
func (cs ConnState) Fatal() bool { return cs.State == StateSocketCreateFailed }

package uplink

// Values are read and modified atomically, but not consistently.

import (
	"expvar"
	"fmt"

	"github.com/temoto/concentrator/internal/types"
)

type SessionStat struct {
	Attempts     expvar.Int
	Connects     expvar.Int
	Backoffs     expvar.Int
	Timeouts     expvar.Int
	Refused      expvar.Int
	Hangups      expvar.Int
	EncodeErrors expvar.Int
	Payloads     expvar.Int
	Bytes        expvar.Int
}

func (ss *SessionStat) broken(r types.Reason) {
	switch r {
	case types.ReasonTimeout:
		ss.Timeouts.Add(1)
	case types.ReasonRefused:
		ss.Refused.Add(1)
	case types.ReasonHangup:
		ss.Hangups.Add(1)
	}
}

func (ss *SessionStat) String() string {
	return fmt.Sprintf(`{"attempts":%d,"connects":%d,"backoffs":%d,"timeouts":%d,"refused":%d,"hangups":%d,"encode_errors":%d,"payloads":%d,"bytes":%d}`,
		ss.Attempts.Value(), ss.Connects.Value(), ss.Backoffs.Value(),
		ss.Timeouts.Value(), ss.Refused.Value(), ss.Hangups.Value(),
		ss.EncodeErrors.Value(), ss.Payloads.Value(), ss.Bytes.Value())
}

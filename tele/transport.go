package tele

import (
	"context"

	"github.com/temoto/concentrator/log2"
)

// Tele transport contract:
// - Init fails only with invalid config, ignores network errors
// - application may start without network available
// - Send* may block up to network timeout, called from tele worker only
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, teleConfig Config) error
	SendPayload(payload []byte) bool
	SendState(payload []byte) bool
	Close()
}

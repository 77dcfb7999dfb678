package run

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
	"github.com/temoto/concentrator/hardware/mock"
	"github.com/temoto/concentrator/log2"
	"github.com/temoto/concentrator/record"
	"github.com/temoto/concentrator/state"
	"github.com/temoto/concentrator/tele"
)

func TestRunSendsPayload(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	received := make(chan []byte, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, record.Len(2))
		if _, err := io.ReadFull(c, buf); err == nil {
			received <- buf
		}
	}()

	log := log2.NewTest(t, log2.LDebug)
	fs := state.NewMockFullReader(map[string]string{
		"c": `collector { address = "` + ln.Addr().String() + `" }
hardware { driver = "mock" }`,
	})
	config, err := state.ReadConfig(log, fs, "c")
	require.NoError(t, err)
	drv := mock.New()
	drv.SetDigital(60, 1)
	drv.SetAnalog(0, 512)
	sys, err := Build(context.Background(), log, config, drv, tele.Noop{})
	require.NoError(t, err)

	a := alive.NewAlive()
	done := make(chan struct{})
	go func() {
		sys.Run(context.Background(), a, config)
		close(done)
	}()

	select {
	case b := <-received:
		records, err := record.Decode(b)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, uint16(1), records[0].Valid)
		assert.Equal(t, uint16(2), records[1].Number)
	case <-time.After(5 * time.Second):
		t.Fatal("payload not received")
	}
	// sensor indicators follow digital input
	assert.Eventually(t, func() bool { return drv.Token(1) == "default-on" }, 5*time.Second, 5*time.Millisecond)

	a.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	require.NoError(t, sys.Close())
	assert.Equal(t, "none", drv.Token(0))
	assert.Equal(t, "none", drv.Token(1))
}

func TestBuildInvalidConfig(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	fs := state.NewMockFullReader(map[string]string{"c": `collector { address = "nope" }`})
	config, err := state.ReadConfig(log, fs, "c")
	require.NoError(t, err)
	_, err = Build(context.Background(), log, config, mock.New(), tele.Noop{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collector address")
}

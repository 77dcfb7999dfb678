package state

import (
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/concentrator/hardware/mock"
	"github.com/temoto/concentrator/log2"
	"github.com/temoto/concentrator/sensor"
	"github.com/temoto/concentrator/status"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, *Config)
		expectErr string
	}
	cases := []Case{
		{"empty", "", func(t testing.TB, c *Config) {
			assert.Equal(t, DefaultCollectorAddress, c.Collector.Address)
			addr, err := c.CollectorAddress()
			require.NoError(t, err)
			assert.Equal(t, "192.168.1.103:2017", addr)
			slots, err := c.Slots()
			require.NoError(t, err)
			assert.Equal(t, sensor.DefaultSlots(), slots)
			sc, err := c.StatusConfig()
			require.NoError(t, err)
			assert.Equal(t, status.Config{Sensor: []uint32{1, 2, 3}, Connection: []uint32{0}}, sc)
			opt := c.UplinkOptions()
			assert.Equal(t, 10*time.Second, opt.RetryDelay)
			assert.Equal(t, 10*time.Second, opt.RetryMax)
			assert.Equal(t, 10*time.Second, opt.SendInterval)
			assert.Equal(t, 2*time.Second, c.PollInterval())
			assert.Equal(t, "sysfs", c.Hardware.Driver)
			assert.NoError(t, c.Validate())
		}, ""},

		{"collector", `
collector {
	address = "10.0.0.5:2017"
	legacy_port_swap = true
	retry_delay_sec = 3
	retry_max_sec = 60
	retry_factor = 2.0
	send_interval_sec = 5
}`,
			func(t testing.TB, c *Config) {
				addr, err := c.CollectorAddress()
				require.NoError(t, err)
				assert.Equal(t, "10.0.0.5:57607", addr)
				opt := c.UplinkOptions()
				assert.Equal(t, 3*time.Second, opt.RetryDelay)
				assert.Equal(t, 60*time.Second, opt.RetryMax)
				assert.Equal(t, float32(2), opt.RetryFactor)
				assert.Equal(t, 5*time.Second, opt.SendInterval)
			}, ""},

		{"sensors", `
sensors {
	poll_interval_sec = 1
	sensor "north" { type = "humidity" number = 1 digital = 60 analog = 0 }
	sensor "south" { type = "humidity" number = 2 digital = 61 analog = 1 reserved = true }
	sensor "tank" { type = "water_level" number = 1 digital = 48 analog = 2 }
}
indicators { sensor = [2] connection = [0, 3] }`,
			func(t testing.TB, c *Config) {
				slots, err := c.Slots()
				require.NoError(t, err)
				require.Len(t, slots, 3)
				assert.Equal(t, sensor.SlotConfig{Name: "north", Type: sensor.TypeHumidity, Number: 1, Valid: true, DigitalChannel: 60, AnalogChannel: 0}, slots[0])
				assert.False(t, slots[1].Valid)
				assert.Equal(t, sensor.TypeWaterLevel, slots[2].Type)
				assert.Equal(t, []uint32{60, 48}, c.DigitalChannels())
				assert.Equal(t, time.Second, c.PollInterval())
				sc, err := c.StatusConfig()
				require.NoError(t, err)
				assert.Equal(t, status.Config{Sensor: []uint32{2}, Connection: []uint32{0, 3}}, sc)
			}, ""},

		{"include-optional", `
include "collector-local" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "127.0.0.1:2017", c.Collector.Address)
			}, ""},

		{"include-overwrites", `
collector { address = "10.1.1.1:1" }
include "collector-local" {}`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "127.0.0.1:2017", c.Collector.Address)
			}, ""},

		{"include-normalize", `include "./empty" {}`, nil, ""},
		{"error-syntax", `hello`, nil, "key 'hello' expected start of object"},
		{"error-include-required", `include "non-exist" {}`, nil, "config required name=non-exist"},
		{"error-include-loop", `include "include-loop" {}`, nil, "config include loop: from=include-loop include=include-loop"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			log := log2.NewTest(t, log2.LDebug)
			fs := NewMockFullReader(map[string]string{
				"test-inline":     c.input,
				"empty":           "",
				"collector-local": `collector { address = "127.0.0.1:2017" }`,
				"include-loop":    `include "include-loop" {}`,
			})
			cfg, err := ReadConfig(log, fs, "test-inline")
			if c.expectErr == "" {
				if err != nil {
					t.Fatalf("error expected=nil actual='%v'", errors.ErrorStack(err))
				}
				if c.check != nil {
					c.check(t, cfg)
				}
			} else {
				require.Error(t, err)
				if !strings.Contains(err.Error(), c.expectErr) {
					t.Fatalf("error expected='%s' actual='%v'", c.expectErr, err)
				}
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		input     string
		expectErr string
	}{
		{"address", `collector { address = "collector" }`, "collector address=collector"},
		{"port", `collector { address = "collector:99999" }`, "port"},
		{"retry-max", `collector { retry_delay_sec = 10 retry_max_sec = 5 }`, "retry_max_sec=5"},
		{"sensor-type", `sensors { sensor "x" { type = "pressure" } }`, "pressure"},
		{"sensor-duplicate", `sensors {
	sensor "a" { number = 1 }
	sensor "b" { number = 1 digital = 2 }
}`, "duplicate"},
		{"sensor-number", `sensors { sensor "x" { number = 300 } }`, "number=300"},
		{"indicator", `indicators { connection = [-1] }`, "channel=-1"},
		{"driver", `hardware { driver = "spi" }`, "driver=spi"},
		{"cdev-chip", `hardware { driver = "cdev" }`, "cdev_chip"},
		{"tele", `tele { enable = true }`, "mqtt_broker"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			cfg, err := ReadConfig(log2.NewTest(t, log2.LDebug), NewMockFullReader(map[string]string{"c": c.input}), "c")
			require.NoError(t, err)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.expectErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	fs := NewMockFullReader(map[string]string{
		"c":    `collector { address = "10.0.0.1:2017" } tele { mqtt_broker = "tcp://hcl:1883" }`,
		".env": "CONCENTRATOR_COLLECTOR_ADDRESS=10.0.0.2:2017\nCONCENTRATOR_TELE_BROKER=tcp://dotenv:1883\n",
	})
	log := log2.NewTest(t, log2.LDebug)

	cfg := MustReadConfig(log, fs, "c")
	require.NoError(t, cfg.ApplyEnv(log, fs, ".env", nil))
	assert.Equal(t, "10.0.0.2:2017", cfg.Collector.Address)
	assert.Equal(t, "tcp://dotenv:1883", cfg.Tele.MqttBroker)

	cfg = MustReadConfig(log, fs, "c")
	env := map[string]string{EnvCollectorAddress: "10.0.0.3:2017"}
	require.NoError(t, cfg.ApplyEnv(log, fs, ".env", func(k string) string { return env[k] }))
	assert.Equal(t, "10.0.0.3:2017", cfg.Collector.Address)
	assert.Equal(t, "tcp://dotenv:1883", cfg.Tele.MqttBroker)

	cfg = MustReadConfig(log, fs, "c")
	require.NoError(t, cfg.ApplyEnv(log, fs, "missing.env", nil))
	assert.Equal(t, "10.0.0.1:2017", cfg.Collector.Address)
	assert.Equal(t, "tcp://hcl:1883", cfg.Tele.MqttBroker)
}

func TestOpenDriver(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	d, err := OpenDriver(log, HardwareConfig{Driver: "mock"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &mock.Driver{}, d)

	dir := t.TempDir()
	d, err = OpenDriver(log, HardwareConfig{Driver: "sysfs", GpioRoot: dir, AdcRoot: dir, LedsRoot: dir}, nil)
	require.NoError(t, err)
	assert.NoError(t, d.Close())

	_, err = OpenDriver(log, HardwareConfig{Driver: "cdev"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err))
}

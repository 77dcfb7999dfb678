package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/concentrator/hardware"
	"github.com/temoto/concentrator/log2"
	"github.com/temoto/concentrator/record"
)

func testTree(t testing.TB) (Config, func(rel, content string)) {
	root := t.TempDir()
	c := Config{
		GpioRoot: filepath.Join(root, "gpio"),
		AdcRoot:  filepath.Join(root, "iio"),
		LedsRoot: filepath.Join(root, "leds"),
	}
	put := func(rel, content string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return c, put
}

func TestReadDigital(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		content   string
		expect    byte
		expectErr string
	}
	cases := []Case{
		{"high", "1\n", 1, ""},
		{"low", "0\n", 0, ""},
		{"garbage", "x\n", 0, "not valid"},
		{"empty", "", 0, "not valid"},
		{"missing", "-", 0, "gpio read channel=60"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			cfg, put := testTree(t)
			if c.content != "-" {
				put("gpio/gpio60/value", c.content)
			}
			d, err := New(cfg, log2.NewTest(t, log2.LDebug))
			require.NoError(t, err)
			v, err := d.ReadDigital(60)
			if c.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, v)
		})
	}
}

func TestReadAnalog(t *testing.T) {
	t.Parallel()

	cfg, put := testTree(t)
	put("iio/in_voltage0_raw", "512\n")
	put("iio/in_voltage1_raw", "\n")
	d, err := New(cfg, log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)

	v, err := d.ReadAnalog(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(512), v)

	_, err = d.ReadAnalog(1)
	assert.Error(t, err)
	_, err = d.ReadAnalog(2)
	assert.Error(t, err)
}

func TestParseRaw(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input  string
		expect uint16
		ok     bool
	}{
		{"0", 0, true},
		{"4095\n", 4095, true},
		{" 17 ", 17, true},
		{"12ab", 12, true},
		{"9999", 9999, true},
		{"12345\n", 1234, true},
		{"65536", 6553, true},
		{"", 0, false},
		{"-1", 0, false},
	}
	for _, c := range cases {
		v, err := ParseRaw([]byte(c.input))
		if !c.ok {
			assert.Error(t, err, "input=%q", c.input)
			continue
		}
		assert.NoError(t, err, "input=%q", c.input)
		assert.Equal(t, c.expect, v, "input=%q", c.input)
		assert.LessOrEqual(t, int(v), record.FieldMax, "input=%q", c.input)
	}
}

func TestWriteIndicator(t *testing.T) {
	t.Parallel()

	cfg, put := testTree(t)
	for i := 0; i < 2; i++ {
		put(fmt.Sprintf("leds/beaglebone:green:usr%d/trigger", i), "heartbeat")
	}
	d, err := New(cfg, log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)

	require.NoError(t, d.WriteIndicator(0, hardware.TokenDefaultOn))
	require.NoError(t, d.WriteIndicator(0, hardware.TokenNone))
	require.NoError(t, d.WriteIndicator(1, hardware.TokenDefaultOn))
	assert.Error(t, d.WriteIndicator(3, hardware.TokenNone))

	b, err := os.ReadFile(filepath.Join(cfg.LedsRoot, "beaglebone:green:usr0", "trigger"))
	require.NoError(t, err)
	assert.Equal(t, "none", string(b))
	b, err = os.ReadFile(filepath.Join(cfg.LedsRoot, "beaglebone:green:usr1", "trigger"))
	require.NoError(t, err)
	assert.Equal(t, "default-on", string(b))
}

func TestExportInput(t *testing.T) {
	t.Parallel()

	cfg, put := testTree(t)
	put("gpio/export", "")
	put("gpio/gpio60/direction", "out")
	cfg.Export = []uint32{60}
	_, err := New(cfg, log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(cfg.GpioRoot, "gpio60", "direction"))
	require.NoError(t, err)
	assert.Equal(t, "in", string(b))

	// regular file system does not create gpio61 on export write
	cfg.Export = []uint32{61}
	_, err = New(cfg, log2.NewTest(t, log2.LDebug))
	assert.Error(t, err)
	b, err = os.ReadFile(filepath.Join(cfg.GpioRoot, "export"))
	require.NoError(t, err)
	assert.Equal(t, "61", string(b))
}

package cdev

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/concentrator/hardware"
	"github.com/temoto/concentrator/hardware/mock"
	gpio "github.com/temoto/gpio-cdev-go"
	gpio_mock "github.com/temoto/gpio-cdev-go/mock"
)

func TestReadDigital(t *testing.T) {
	t.Parallel()

	chip := &gpio_mock.MockChip{}
	line60 := &gpio_mock.MockLines{}
	line61 := &gpio_mock.MockLines{}
	chip.On("OpenLines", gpio.GPIOHANDLE_REQUEST_INPUT, consumerLabel, uint32(60)).Return(line60, nil)
	chip.On("OpenLines", gpio.GPIOHANDLE_REQUEST_INPUT, consumerLabel, uint32(61)).Return(line61, nil)
	high := gpio.HandleData{}
	high.Values[0] = 1
	line60.On("Read").Return(high, nil)
	line61.On("Read").Return(gpio.HandleData{}, fmt.Errorf("EIO"))

	fallback := mock.New()
	fallback.SetAnalog(0, 512)
	d, err := NewWithChip(chip, []uint32{60, 61, 60}, fallback)
	require.NoError(t, err)

	v, err := d.ReadDigital(60)
	require.NoError(t, err)
	assert.Equal(t, byte(1), v)

	_, err = d.ReadDigital(61)
	assert.Error(t, err)

	_, err = d.ReadDigital(62)
	assert.Error(t, err)

	a, err := d.ReadAnalog(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(512), a)

	require.NoError(t, d.WriteIndicator(1, hardware.TokenHeartbeat))
	assert.Equal(t, hardware.TokenHeartbeat, fallback.Token(1))

	line60.On("Close").Return(nil)
	line61.On("Close").Return(gpio.ErrClosed)
	chip.On("Close").Return(nil)
	assert.NoError(t, d.Close())
	chip.AssertExpectations(t)
	line60.AssertExpectations(t)
	line61.AssertExpectations(t)
	chip.AssertNumberOfCalls(t, "OpenLines", 2)
}

func TestOpenLineError(t *testing.T) {
	t.Parallel()

	chip := &gpio_mock.MockChip{}
	line60 := &gpio_mock.MockLines{}
	chip.On("OpenLines", gpio.GPIOHANDLE_REQUEST_INPUT, consumerLabel, uint32(60)).Return(line60, nil)
	chip.On("OpenLines", gpio.GPIOHANDLE_REQUEST_INPUT, consumerLabel, uint32(99)).Return((*gpio_mock.MockLines)(nil), fmt.Errorf("EINVAL"))
	line60.On("Close").Return(nil)

	_, err := NewWithChip(chip, []uint32{60, 99}, mock.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line=99")
	line60.AssertExpectations(t)

	_, err = NewWithChip(chip, nil, nil)
	assert.Error(t, err)
}

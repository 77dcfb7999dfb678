package state

import (
	"github.com/juju/errors"
	"github.com/temoto/concentrator/hardware"
	"github.com/temoto/concentrator/hardware/cdev"
	"github.com/temoto/concentrator/hardware/mock"
	"github.com/temoto/concentrator/hardware/sysfs"
	"github.com/temoto/concentrator/log2"
)

type HardwareConfig struct {
	// sysfs | cdev | mock
	Driver   string `hcl:"driver"`
	GpioRoot string `hcl:"gpio_root"`
	AdcRoot  string `hcl:"adc_root"`
	LedsRoot string `hcl:"leds_root"`
	LedName  string `hcl:"led_name"`
	// sysfs: export listed GPIO numbers as inputs at start
	Export []int `hcl:"export"`
	// cdev: sensor digital channel is line offset on this chip
	CdevChip string `hcl:"cdev_chip"`
}

func (hc *HardwareConfig) validate() error {
	switch hc.Driver {
	case "sysfs", "mock":
	case "cdev":
		if hc.CdevChip == "" {
			return errors.NotValidf("hardware driver=cdev requires cdev_chip")
		}
	default:
		return errors.NotValidf("hardware driver=%s", hc.Driver)
	}
	_, err := channels("hardware export", hc.Export)
	return err
}

// OpenDriver creates configured Sensor I/O driver.
// digitalLines are requested up front by cdev driver.
func OpenDriver(log *log2.Log, hc HardwareConfig, digitalLines []uint32) (hardware.Driver, error) {
	if err := hc.validate(); err != nil {
		return nil, err
	}
	if hc.Driver == "mock" {
		log.Infof("hardware driver=mock, sensor values are not real")
		return mock.New(), nil
	}

	export, _ := channels("hardware export", hc.Export)
	fs, err := sysfs.New(sysfs.Config{
		GpioRoot: hc.GpioRoot,
		AdcRoot:  hc.AdcRoot,
		LedsRoot: hc.LedsRoot,
		LedName:  hc.LedName,
		Export:   export,
	}, log)
	if err != nil {
		return nil, errors.Annotate(err, "hardware sysfs")
	}
	if hc.Driver == "sysfs" {
		return fs, nil
	}

	d, err := cdev.Open(hc.CdevChip, digitalLines, fs)
	if err != nil {
		_ = fs.Close()
		return nil, errors.Annotate(err, "hardware cdev")
	}
	return d, nil
}

// DigitalChannels lists digital channels of valid slots.
func (c *Config) DigitalChannels() []uint32 {
	slots, err := c.Slots()
	if err != nil {
		return nil
	}
	r := make([]uint32, 0, len(slots))
	for _, s := range slots {
		if s.Valid {
			r = append(r, s.DigitalChannel)
		}
	}
	return r
}

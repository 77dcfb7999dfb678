package state

import (
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/concentrator/helpers"
	"github.com/temoto/concentrator/log2"
	"github.com/temoto/concentrator/sensor"
	"github.com/temoto/concentrator/status"
	"github.com/temoto/concentrator/tele"
	"github.com/temoto/concentrator/uplink"
)

const (
	DefaultConfigName       = "concentrator.hcl"
	DefaultCollectorAddress = "192.168.1.103:2017"
	DefaultHardwareDriver   = "sysfs"
	DefaultNetworkTimeout   = 30 * time.Second
)

var (
	defaultSensorIndicators     = []int{1, 2, 3}
	defaultConnectionIndicators = []int{0}
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Collector struct {
		Address           string  `hcl:"address"`
		ConnectTimeoutSec int     `hcl:"connect_timeout_sec"`
		RetryDelaySec     int     `hcl:"retry_delay_sec"`
		RetryMaxSec       int     `hcl:"retry_max_sec"`
		RetryFactor       float64 `hcl:"retry_factor"`
		SendIntervalSec   int     `hcl:"send_interval_sec"`
		WriteTimeoutSec   int     `hcl:"write_timeout_sec"`
		// reproduce old firmware which put port into socket address without byte order conversion
		LegacyPortSwap bool `hcl:"legacy_port_swap"`
	} `hcl:"collector"`

	Sensors struct {
		PollIntervalSec int `hcl:"poll_interval_sec"`
		// only used for Unmarshal, use Slots()
		XXX_Sensor []SensorConfig `hcl:"sensor"`
	} `hcl:"sensors"`

	Hardware HardwareConfig `hcl:"hardware"`

	Indicators struct {
		Sensor     []int `hcl:"sensor"`
		Connection []int `hcl:"connection"`
	} `hcl:"indicators"`

	Tele tele.Config `hcl:"tele"`

	LogDebug bool `hcl:"log_debug"`
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

type SensorConfig struct {
	Name     string `hcl:"name,key"`
	Type     string `hcl:"type"`
	Number   int    `hcl:"number"`
	Reserved bool   `hcl:"reserved"`
	Digital  int    `hcl:"digital"`
	Analog   int    `hcl:"analog"`
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig reads names in order, later values overwrite earlier.
// Nothing is validated here, see Validate.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.NotValidf("code error ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		if err := osfs.SetBase(dir); err != nil {
			return nil, err
		}
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	if err := helpers.FoldErrors(errs); err != nil {
		return nil, err
	}
	c.fillDefaults()
	return c, nil
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}

func (c *Config) fillDefaults() {
	if c.Collector.Address == "" {
		c.Collector.Address = DefaultCollectorAddress
	}
	if c.Hardware.Driver == "" {
		c.Hardware.Driver = DefaultHardwareDriver
	}
	if c.Indicators.Sensor == nil {
		c.Indicators.Sensor = append([]int(nil), defaultSensorIndicators...)
	}
	if c.Indicators.Connection == nil {
		c.Indicators.Connection = append([]int(nil), defaultConnectionIndicators...)
	}
}

// Validate returns all found problems at once.
func (c *Config) Validate() error {
	errs := make([]error, 0, 8)
	if _, err := c.CollectorAddress(); err != nil {
		errs = append(errs, err)
	}
	if c.Collector.RetryFactor < 0 {
		errs = append(errs, errors.NotValidf("collector retry_factor=%v", c.Collector.RetryFactor))
	}
	if c.Collector.RetryMaxSec != 0 && c.Collector.RetryMaxSec < c.Collector.RetryDelaySec {
		errs = append(errs, errors.NotValidf("collector retry_max_sec=%d < retry_delay_sec=%d", c.Collector.RetryMaxSec, c.Collector.RetryDelaySec))
	}
	if _, err := c.Slots(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.StatusConfig(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Hardware.validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Tele.Enabled && c.Tele.MqttBroker == "" {
		errs = append(errs, errors.NotValidf("tele enabled with empty mqtt_broker"))
	}
	return helpers.FoldErrors(errs)
}

// CollectorAddress returns dial address with legacy port swap applied.
func (c *Config) CollectorAddress() (string, error) {
	if _, _, err := net.SplitHostPort(c.Collector.Address); err != nil {
		return "", errors.NotValidf("collector address=%s", c.Collector.Address)
	}
	return uplink.ResolvePort(c.Collector.Address, c.Collector.LegacyPortSwap)
}

// Slots returns configured sensors in transmission order, or firmware defaults if none.
func (c *Config) Slots() ([]sensor.SlotConfig, error) {
	if len(c.Sensors.XXX_Sensor) == 0 {
		return sensor.DefaultSlots(), nil
	}
	slots := make([]sensor.SlotConfig, 0, len(c.Sensors.XXX_Sensor))
	for _, sc := range c.Sensors.XXX_Sensor {
		typ, err := sensor.ParseType(sc.Type)
		if err != nil {
			return nil, errors.Annotatef(err, "sensor=%s", sc.Name)
		}
		if sc.Number < 0 || sc.Number > 255 {
			return nil, errors.NotValidf("sensor=%s number=%d", sc.Name, sc.Number)
		}
		if sc.Digital < 0 || sc.Analog < 0 {
			return nil, errors.NotValidf("sensor=%s digital=%d analog=%d", sc.Name, sc.Digital, sc.Analog)
		}
		slots = append(slots, sensor.SlotConfig{
			Name:           sc.Name,
			Type:           typ,
			Number:         uint8(sc.Number),
			Valid:          !sc.Reserved,
			DigitalChannel: uint32(sc.Digital),
			AnalogChannel:  uint32(sc.Analog),
		})
	}
	if _, err := sensor.InitPackets(slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *Config) StatusConfig() (status.Config, error) {
	sc, err := channels("indicators sensor", c.Indicators.Sensor)
	if err != nil {
		return status.Config{}, err
	}
	cc, err := channels("indicators connection", c.Indicators.Connection)
	if err != nil {
		return status.Config{}, err
	}
	return status.Config{Sensor: sc, Connection: cc}, nil
}

func (c *Config) UplinkOptions() uplink.Options {
	retry := helpers.IntSecondDefault(c.Collector.RetryDelaySec, uplink.DefaultRetryDelay)
	return uplink.Options{
		RetryDelay:   retry,
		RetryMax:     helpers.IntSecondDefault(c.Collector.RetryMaxSec, retry),
		RetryFactor:  float32(c.Collector.RetryFactor),
		SendInterval: helpers.IntSecondDefault(c.Collector.SendIntervalSec, uplink.DefaultSendInterval),
	}
}

func (c *Config) ConnectTimeout() time.Duration {
	return helpers.IntSecondDefault(c.Collector.ConnectTimeoutSec, DefaultNetworkTimeout)
}

func (c *Config) WriteTimeout() time.Duration {
	return helpers.IntSecondDefault(c.Collector.WriteTimeoutSec, DefaultNetworkTimeout)
}

func (c *Config) PollInterval() time.Duration {
	return helpers.IntSecondDefault(c.Sensors.PollIntervalSec, sensor.DefaultPollInterval)
}

func channels(name string, xs []int) ([]uint32, error) {
	r := make([]uint32, 0, len(xs))
	for _, x := range xs {
		if x < 0 {
			return nil, errors.NotValidf("%s channel=%s", name, strconv.Itoa(x))
		}
		r = append(r, uint32(x))
	}
	return r, nil
}

package state

import (
	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"github.com/temoto/concentrator/log2"
)

const (
	DefaultEnvName = ".env"

	EnvCollectorAddress = "CONCENTRATOR_COLLECTOR_ADDRESS"
	EnvTeleBroker       = "CONCENTRATOR_TELE_BROKER"
)

// ApplyEnv overrides config from optional dotenv file and process environment.
// Process environment wins over file, both win over hcl.
func (c *Config) ApplyEnv(log *log2.Log, fs FullReader, name string, getenv func(string) string) error {
	file := map[string]string{}
	if name != "" {
		bs, err := fs.ReadAll(fs.Normalize(name))
		if err != nil {
			return errors.Annotatef(err, "env source=%s", name)
		}
		if bs != nil {
			if file, err = godotenv.Unmarshal(string(bs)); err != nil {
				return errors.Annotatef(err, "env parse source=%s", name)
			}
		}
	}
	lookup := func(key string) string {
		if getenv != nil {
			if v := getenv(key); v != "" {
				return v
			}
		}
		return file[key]
	}

	if v := lookup(EnvCollectorAddress); v != "" {
		log.Debugf("config env %s=%s", EnvCollectorAddress, v)
		c.Collector.Address = v
	}
	if v := lookup(EnvTeleBroker); v != "" {
		log.Debugf("config env %s=%s", EnvTeleBroker, v)
		c.Tele.MqttBroker = v
	}
	return nil
}

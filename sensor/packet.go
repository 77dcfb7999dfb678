package sensor

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// Type values are transmitted as is.
type Type uint8

const (
	TypeHumidity Type = iota + 1
	TypeWaterLevel
	TypeWaterSensor
)

func (t Type) String() string {
	switch t {
	case TypeHumidity:
		return "humidity"
	case TypeWaterLevel:
		return "water_level"
	case TypeWaterSensor:
		return "water_sensor"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "", "humidity":
		return TypeHumidity, nil
	case "water_level":
		return TypeWaterLevel, nil
	case "water_sensor":
		return TypeWaterSensor, nil
	}
	return 0, errors.NotValidf("sensor type=%s", s)
}

// Reading of one sensor slot.
// Valid=false marks reserved slot which is transmitted but never read.
type Reading struct {
	Analog  uint16
	Digital byte
	Number  uint8
	Valid   bool
}

type Packet struct {
	Type    Type
	Reading Reading
}

func (p Packet) String() string {
	return fmt.Sprintf("%s#%d valid=%t digital=%d analog=%d",
		p.Type, p.Reading.Number, p.Reading.Valid, p.Reading.Digital, p.Reading.Analog)
}

// SlotConfig binds packet position to driver channels.
type SlotConfig struct {
	Name           string
	Type           Type
	Number         uint8
	Valid          bool
	DigitalChannel uint32
	AnalogChannel  uint32
}

// InitPackets returns zeroed sequence seeded with type, number and validity.
// Order of slots is transmission order. Same input always gives identical output.
func InitPackets(slots []SlotConfig) ([]Packet, error) {
	type key struct {
		t Type
		n uint8
	}
	seen := make(map[key]string, len(slots))
	ps := make([]Packet, len(slots))
	for i, s := range slots {
		if s.Type < TypeHumidity || s.Type > TypeWaterSensor {
			return nil, errors.NotValidf("sensor slot=%s type=%d", s.Name, s.Type)
		}
		k := key{s.Type, s.Number}
		if other, ok := seen[k]; ok {
			return nil, errors.NotValidf("sensor slot=%s duplicate %s number=%d (used by slot=%s)", s.Name, s.Type, s.Number, other)
		}
		seen[k] = s.Name
		ps[i] = Packet{
			Type:    s.Type,
			Reading: Reading{Number: s.Number, Valid: s.Valid},
		}
	}
	return ps, nil
}

// DefaultSlots matches board wiring of the first deployment:
// humidity sensor 1 on GPIO60/ADC0, humidity sensor 2 reserved on GPIO61/ADC1.
func DefaultSlots() []SlotConfig {
	return []SlotConfig{
		{Name: "humidity1", Type: TypeHumidity, Number: 1, Valid: true, DigitalChannel: 60, AnalogChannel: 0},
		{Name: "humidity2", Type: TypeHumidity, Number: 2, Valid: false, DigitalChannel: 61, AnalogChannel: 1},
	}
}

// Package record is collector wire format.
//
// Each packet is 20 ASCII digits, five zero-padded 4-digit fields without separators:
//   validity type number digital analog
// Payload is concatenation of records in packet order, no framing, no terminator.
// Receiver must know packet count or read fixed size chunks.
//
// Every field must be in 0..9999, wider value would shift all following fields,
// so Encode rejects whole sequence instead of producing misaligned payload.
package record

import (
	"fmt"
	"strconv"

	"github.com/juju/errors"
	"github.com/temoto/concentrator/sensor"
)

const (
	FieldWidth = 4
	FieldCount = 5
	RecordLen  = FieldWidth * FieldCount
	FieldMax   = 9999
)

type Record struct {
	Valid   uint16
	Type    uint16
	Number  uint16
	Digital uint16
	Analog  uint16
}

func (r Record) String() string {
	return fmt.Sprintf("%04d%04d%04d%04d%04d", r.Valid, r.Type, r.Number, r.Digital, r.Analog)
}

func FromPacket(p sensor.Packet) Record {
	r := Record{
		Type:    uint16(p.Type),
		Number:  uint16(p.Reading.Number),
		Digital: uint16(p.Reading.Digital),
		Analog:  p.Reading.Analog,
	}
	if p.Reading.Valid {
		r.Valid = 1
	}
	return r
}

// Len returns payload size for count packets.
func Len(count int) int { return RecordLen * count }

func Encode(packets []sensor.Packet) ([]byte, error) {
	b := make([]byte, 0, Len(len(packets)))
	for i, p := range packets {
		var err error
		if b, err = AppendRecord(b, FromPacket(p)); err != nil {
			return nil, errors.Annotatef(err, "packet index=%d", i)
		}
	}
	return b, nil
}

func AppendRecord(b []byte, r Record) ([]byte, error) {
	fields := [FieldCount]uint16{r.Valid, r.Type, r.Number, r.Digital, r.Analog}
	for i, f := range fields {
		if f > FieldMax {
			return b, errors.NotValidf("field %s=%d exceeds %d", fieldNames[i], f, FieldMax)
		}
	}
	for _, f := range fields {
		b = appendField(b, f)
	}
	return b, nil
}

func Decode(b []byte) ([]Record, error) {
	if len(b)%RecordLen != 0 {
		return nil, errors.NotValidf("payload length=%d not multiple of %d", len(b), RecordLen)
	}
	rs := make([]Record, 0, len(b)/RecordLen)
	for off := 0; off < len(b); off += RecordLen {
		var fields [FieldCount]uint16
		for i := range fields {
			start := off + i*FieldWidth
			chunk := b[start : start+FieldWidth]
			for _, c := range chunk {
				if c < '0' || c > '9' {
					return nil, errors.NotValidf("record=%d field %s=%q", off/RecordLen, fieldNames[i], chunk)
				}
			}
			v, err := strconv.ParseUint(string(chunk), 10, 16)
			if err != nil {
				return nil, errors.Annotatef(err, "record=%d field %s", off/RecordLen, fieldNames[i])
			}
			fields[i] = uint16(v)
		}
		rs = append(rs, Record{
			Valid:   fields[0],
			Type:    fields[1],
			Number:  fields[2],
			Digital: fields[3],
			Analog:  fields[4],
		})
	}
	return rs, nil
}

var fieldNames = [FieldCount]string{"validity", "type", "number", "digital", "analog"}

func appendField(b []byte, v uint16) []byte {
	return append(b,
		byte('0'+v/1000%10),
		byte('0'+v/100%10),
		byte('0'+v/10%10),
		byte('0'+v%10))
}

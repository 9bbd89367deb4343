package peripheral

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// Opcode is 6 bit peripheral operation id, combined with type tag into command byte.
type Opcode byte

const (
	OpColor             Opcode = 0x05
	OpTempNow           Opcode = 0x11
	OpTempAvg           Opcode = 0x12
	OpTempRaw           Opcode = 0x13
	OpTempRawSum        Opcode = 0x14 // sum of last 256 raw readings
	OpSeriesResistor    Opcode = 0x15
	OpNominalResistance Opcode = 0x16
	OpBetaCoefficient   Opcode = 0x17
	OpSelfTest          Opcode = 0x20

	OpcodeMask = 0x3f
)

// Command byte bits 7-6.
const (
	TypeGetter2 byte = 0x00
	TypeGetter4 byte = 0x40
	TypeSetter2 byte = 0x80
	TypeSetter4 byte = 0xc0
)

var opcodeNames = map[Opcode]string{
	OpColor:             "color",
	OpTempNow:           "temp-now",
	OpTempAvg:           "temp-avg",
	OpTempRaw:           "temp-raw",
	OpTempRawSum:        "temp-raw-sum",
	OpSeriesResistor:    "series-resistor",
	OpNominalResistance: "nominal-resistance",
	OpBetaCoefficient:   "beta",
	OpSelfTest:          "test",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op%02x", byte(op))
}

// ParseOpcode accepts name from String() or number, decimal or 0x hex.
func ParseOpcode(s string) (Opcode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for op, name := range opcodeNames {
		if name == s {
			return op, nil
		}
	}
	u, err := strconv.ParseUint(s, 0, 8)
	if err != nil || u > OpcodeMask {
		return 0, errors.NotValidf("opcode=%q", s)
	}
	return Opcode(u), nil
}

func Command(op Opcode, getter bool, length int) (byte, error) {
	if byte(op)&^OpcodeMask != 0 {
		return 0, errors.NotValidf("opcode=%02x", byte(op))
	}
	var tag byte
	switch {
	case getter && length == 2:
		tag = TypeGetter2
	case getter && length == 4:
		tag = TypeGetter4
	case !getter && length == 2:
		tag = TypeSetter2
	case !getter && length == 4:
		tag = TypeSetter4
	default:
		return 0, errors.Annotatef(ErrInvalidLength, "length=%d", length)
	}
	return byte(op) | tag, nil
}

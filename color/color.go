// Package color converts the packed 32 bit actuator word to structured Color and back.
//
// Word layout, most significant byte first:
//   byte0: bit7 white, bit6 looping, bits1-0 mode
//   byte1: red | hue | ufloat8 time*4 (looping hsv)
//   byte2: green | saturation
//   byte3: blue | value
package color

import (
	"fmt"
	"math"
	"strings"

	"github.com/aykevl/domo-rpi/ufloat8"
	"github.com/juju/errors"
)

const (
	FlagWhite   uint8 = 0x80
	FlagLooping uint8 = 0x40
	ModeMask    uint8 = 0x03
)

var ErrUndefinedMode = errors.New("color mode undefined, no raw word to pass through")

type Mode uint8

const (
	ModeRGB Mode = iota
	ModeHSV
	ModeHSVMax
	ModeUndefined
)

var modeNames = [...]string{
	ModeRGB:       "rgb",
	ModeHSV:       "hsv",
	ModeHSVMax:    "hsv-max",
	ModeUndefined: "undefined",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

func (m Mode) IsHSV() bool { return m == ModeHSV || m == ModeHSVMax }

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rgb":
		return ModeRGB, nil
	case "hsv":
		return ModeHSV, nil
	case "hsv-max":
		return ModeHSVMax, nil
	case "undefined", "undefined-1":
		return ModeUndefined, nil
	}
	return 0, errors.NotValidf("color mode=%q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	if int(m) >= len(modeNames) {
		return nil, errors.NotValidf("color mode=%d", uint8(m))
	}
	return []byte(modeNames[m]), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	x, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = x
	return nil
}

// Channel values are normalized to [0,1], except Time which is in seconds.
type Color struct {
	Mode       Mode    `json:"mode"`
	IsWhite    bool    `json:"isWhite"`
	Looping    bool    `json:"looping"`
	Hue        float64 `json:"hue"`
	Time       float64 `json:"time"`
	Saturation float64 `json:"saturation"`
	Value      float64 `json:"value"`
	Red        float64 `json:"red"`
	Green      float64 `json:"green"`
	Blue       float64 `json:"blue"`

	// set by Decode for undefined mode
	raw    uint32
	hasRaw bool
}

func Decode(raw uint32) Color {
	b0, b1, b2, b3 := uint8(raw>>24), uint8(raw>>16), uint8(raw>>8), uint8(raw)
	c := Color{
		Mode:    Mode(b0 & ModeMask),
		IsWhite: b0&FlagWhite != 0,
		Looping: b0&FlagLooping != 0,
	}
	switch c.Mode {
	case ModeRGB:
		c.Red, c.Green, c.Blue = norm(b1), norm(b2), norm(b3)
	case ModeHSV, ModeHSVMax:
		if c.Looping {
			c.Time = float64(ufloat8.Decode(b1)) / 4
		} else {
			c.Hue = norm(b1)
		}
		c.Saturation, c.Value = norm(b2), norm(b3)
	case ModeUndefined:
		c.raw, c.hasRaw = raw, true
	}
	return c
}

func (c Color) Encode() (uint32, error) {
	var b0, b1, b2, b3 uint8
	switch c.Mode {
	case ModeRGB:
		b1, b2, b3 = denorm(c.Red), denorm(c.Green), denorm(c.Blue)
	case ModeHSV, ModeHSVMax:
		if c.Looping {
			t := c.Time * 4
			if t < 0 || math.IsNaN(t) {
				t = 0
			}
			b1 = ufloat8.Encode(uint32(math.Min(math.Round(t), float64(ufloat8.Max))))
		} else {
			b1 = denorm(c.Hue)
		}
		b2, b3 = denorm(c.Saturation), denorm(c.Value)
	case ModeUndefined:
		if c.hasRaw {
			return c.raw, nil
		}
		return 0, ErrUndefinedMode
	default:
		return 0, errors.NotValidf("color mode=%d", uint8(c.Mode))
	}
	b0 = uint8(c.Mode)
	if c.IsWhite {
		b0 |= FlagWhite
	}
	if c.Looping {
		b0 |= FlagLooping
	}
	return uint32(b0)<<24 | uint32(b1)<<16 | uint32(b2)<<8 | uint32(b3), nil
}

func (c Color) String() string {
	switch c.Mode {
	case ModeRGB:
		return fmt.Sprintf("rgb(%.3f,%.3f,%.3f) white=%t", c.Red, c.Green, c.Blue, c.IsWhite)
	case ModeHSV, ModeHSVMax:
		if c.Looping {
			return fmt.Sprintf("%s(time=%.2fs,%.3f,%.3f) white=%t", c.Mode, c.Time, c.Saturation, c.Value, c.IsWhite)
		}
		return fmt.Sprintf("%s(%.3f,%.3f,%.3f) white=%t", c.Mode, c.Hue, c.Saturation, c.Value, c.IsWhite)
	}
	return fmt.Sprintf("%s(raw=%08x)", c.Mode, c.raw)
}

func norm(b uint8) float64 { return float64(b) / 255 }

func denorm(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(math.Round(v * 255))
}

// Package sensor converts peripheral temperature readings to degrees Celsius.
package sensor

import (
	"math"

	"github.com/juju/errors"
)

const KindTemperature = "temperature"

// Peripheral reports centidegrees offset so that 0 is -55°C.
const tempOffset = 5500

const (
	kelvinOffset = 273.15
	nominalTemp  = 298.15 // 25°C in kelvin
)

func DecodeTemperature(raw uint32) float64 {
	return float64(int64(raw)-tempOffset) / 100
}

// NTC thermistor in voltage divider with series resistor.
type Calibration struct {
	SeriesResistor    float64
	NominalResistance float64
	Beta              float64
}

var DefaultCalibration = Calibration{
	SeriesResistor:    10000,
	NominalResistance: 10000,
	Beta:              3950,
}

func (c Calibration) Validate() error {
	if c.SeriesResistor <= 0 || c.NominalResistance <= 0 || c.Beta <= 0 {
		return errors.NotValidf("calibration %+v", c)
	}
	return nil
}

// Merge returns c with zero fields taken from def.
func (c Calibration) Merge(def Calibration) Calibration {
	if c.SeriesResistor == 0 {
		c.SeriesResistor = def.SeriesResistor
	}
	if c.NominalResistance == 0 {
		c.NominalResistance = def.NominalResistance
	}
	if c.Beta == 0 {
		c.Beta = def.Beta
	}
	return c
}

// RawToCelsius converts ADC reading of given resolution using beta equation.
// Returns NaN when raw is outside of open range (0, 2^bits).
func RawToCelsius(raw uint32, bits uint, cal Calibration) float64 {
	full := float64(uint64(1) << bits)
	f := float64(raw) / full
	if f <= 0 || f >= 1 {
		return math.NaN()
	}
	r := cal.SeriesResistor / (1/f - 1)
	tinv := 1/nominalTemp + math.Log(r/cal.NominalResistance)/cal.Beta
	return 1/tinv - kelvinOffset
}

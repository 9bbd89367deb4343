package sensor

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeTemperature(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input  uint32
		expect float64
	}{
		{6000, 5.00},
		{5500, 0},
		{5000, -5.00},
		{0, -55.00},
		{8000, 25.00},
		{5501, 0.01},
	}
	for _, c := range cases {
		c := c
		t.Run(fmt.Sprint(c.input), func(t *testing.T) {
			assert.InDelta(t, c.expect, DecodeTemperature(c.input), 1e-9)
		})
	}
}

func TestRawToCelsius(t *testing.T) {
	t.Parallel()
	// half scale means thermistor equals series resistor, nominal temperature
	assert.InDelta(t, 25.0, RawToCelsius(512, 10, DefaultCalibration), 1e-9)
	// higher reading means higher NTC resistance, colder
	hot := RawToCelsius(300, 10, DefaultCalibration)
	cold := RawToCelsius(700, 10, DefaultCalibration)
	assert.Less(t, cold, 25.0)
	assert.Greater(t, hot, 25.0)
	// r = 10000/(1024/768-1) = 30000
	assert.InDelta(t, 2.17, RawToCelsius(768, 10, DefaultCalibration), 0.01)

	assert.True(t, math.IsNaN(RawToCelsius(0, 10, DefaultCalibration)))
	assert.True(t, math.IsNaN(RawToCelsius(1024, 10, DefaultCalibration)))
}

func TestCalibration(t *testing.T) {
	t.Parallel()
	assert.NoError(t, DefaultCalibration.Validate())
	assert.Error(t, Calibration{}.Validate())
	c := Calibration{Beta: 3435}.Merge(DefaultCalibration)
	assert.Equal(t, Calibration{SeriesResistor: 10000, NominalResistance: 10000, Beta: 3435}, c)
}

package color

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input  uint32
		expect Color
	}{
		{0x00ff8000, Color{Mode: ModeRGB, Red: 1, Green: 128.0 / 255, Blue: 0}},
		{0x80000000, Color{Mode: ModeRGB, IsWhite: true}},
		{0x01336699, Color{Mode: ModeHSV, Hue: 0x33 / 255.0, Saturation: 0x66 / 255.0, Value: 0x99 / 255.0}},
		{0x4148ffff, Color{Mode: ModeHSV, Looping: true, Time: 48, Saturation: 1, Value: 1}},
		{0xc2100000, Color{Mode: ModeHSVMax, IsWhite: true, Looping: true, Time: 4}},
	}
	for _, c := range cases {
		c := c
		t.Run(fmt.Sprintf("%08x", c.input), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, c.expect, Decode(c.input))
		})
	}
}

func TestFlagsFromUnmaskedByte(t *testing.T) {
	t.Parallel()
	c := Decode(0xc1000000)
	assert.Equal(t, ModeHSV, c.Mode)
	assert.True(t, c.IsWhite)
	assert.True(t, c.Looping)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	words := []uint32{
		0x4148ffff,
		0x00000000,
		0x00ffffff,
		0x80102030,
		0x01fe0180,
		0x02000000,
		0x42ff7f01,
		0xc1007f80,
	}
	for b := 0; b < 256; b++ {
		words = append(words, uint32(b)<<8|0x41000000, uint32(b)<<16|0x01000000, uint32(b)<<16|0x41000000)
	}
	for _, raw := range words {
		got, err := Decode(raw).Encode()
		require.NoError(t, err, "raw=%08x", raw)
		assert.Equal(t, raw, got, "raw=%08x", raw)
	}
}

func TestUndefined(t *testing.T) {
	t.Parallel()
	c := Decode(0x03123456)
	assert.Equal(t, ModeUndefined, c.Mode)
	assert.Zero(t, c.Red)
	raw, err := c.Encode()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x03123456), raw)

	_, err = Color{Mode: ModeUndefined}.Encode()
	assert.True(t, errors.Cause(err) == ErrUndefinedMode)

	var fromJSON Color
	require.NoError(t, json.Unmarshal([]byte(`{"mode":"undefined"}`), &fromJSON))
	_, err = fromJSON.Encode()
	assert.Equal(t, ErrUndefinedMode, err)
}

func TestEncodeClamp(t *testing.T) {
	t.Parallel()
	raw, err := Color{Mode: ModeRGB, Red: 1.5, Green: -0.2, Blue: 0.5}.Encode()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00ff0080), raw)

	raw, err = Color{Mode: ModeHSV, Looping: true, Time: 1e9}.Encode()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x41ff0000), raw)
}

func TestJSON(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(Decode(0x4148ffff))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"mode":"hsv","isWhite":false,"looping":true,"hue":0,"time":48,"saturation":1,"value":1,"red":0,"green":0,"blue":0}`,
		string(b))

	var c Color
	require.NoError(t, json.Unmarshal([]byte(`{"mode":"rgb","isWhite":true,"red":1,"green":0,"blue":0}`), &c))
	raw, err := c.Encode()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x80ff0000), raw)

	assert.Error(t, json.Unmarshal([]byte(`{"mode":"cmyk"}`), &c))
}

package peripheral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	t.Parallel()
	cases := []struct {
		op     Opcode
		getter bool
		length int
		expect byte
	}{
		{OpTempAvg, true, 2, 0x12},
		{OpColor, true, 4, 0x45},
		{OpSeriesResistor, false, 2, 0x95},
		{OpColor, false, 4, 0xc5},
		{OpSelfTest, true, 2, 0x20},
	}
	for _, c := range cases {
		b, err := Command(c.op, c.getter, c.length)
		require.NoError(t, err)
		assert.Equal(t, c.expect, b, "op=%s getter=%t length=%d", c.op, c.getter, c.length)
	}
	_, err := Command(0x40, true, 2)
	assert.Error(t, err)
	_, err = Command(OpColor, true, 3)
	assert.True(t, IsInvalidLength(err))
}

func TestParseOpcode(t *testing.T) {
	t.Parallel()
	for op, name := range opcodeNames {
		got, err := ParseOpcode(name)
		require.NoError(t, err)
		assert.Equal(t, op, got)
		assert.Equal(t, name, op.String())
	}
	op, err := ParseOpcode("0x14")
	require.NoError(t, err)
	assert.Equal(t, OpTempRawSum, op)
	op, err = ParseOpcode("17")
	require.NoError(t, err)
	assert.Equal(t, OpTempNow, op)
	_, err = ParseOpcode("0x40")
	assert.Error(t, err)
	_, err = ParseOpcode("humidity")
	assert.Error(t, err)
	assert.Equal(t, "op3f", Opcode(0x3f).String())
}

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aykevl/domo-rpi/log2"
	"github.com/aykevl/domo-rpi/sensor"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFull = `
name = "living room"
serial = "0001"
peripheral {
	spi = "/dev/spidev0.0"
	spi_speed = "250kHz"
	reset_chip = "/dev/gpiochip0"
	reset_pin = "25"
}
relay {
	url = "wss://example.com/api/ws"
	network_timeout_sec = 5
}
sensor {
	interval_sec = 30
	beta_coefficient = 3435
}
`

func TestRead(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, *Config)
		expectErr string
	}
	cases := []Case{
		{"empty", "", func(t testing.TB, c *Config) {
			assert.Equal(t, DefaultSensorName, c.SensorName())
			assert.Equal(t, DefaultSensorInterval, c.SensorInterval())
			assert.Equal(t, DefaultColorPoll, c.ColorPoll())
			assert.Error(t, c.Validate())
		}, ""},

		{"full", testFull, func(t testing.TB, c *Config) {
			require.NoError(t, c.Validate())
			pc := c.PeripheralConfig()
			assert.Equal(t, "/dev/spidev0.0", pc.SpiBus)
			assert.Equal(t, "250kHz", pc.SpiSpeed)
			assert.Equal(t, "25", pc.ResetPin)
			rc := c.RelayConfig()
			assert.Equal(t, "living room", rc.Name)
			assert.Equal(t, "0001", rc.Serial)
			assert.Equal(t, "wss://example.com/api/ws", rc.URL)
			assert.Equal(t, 5*time.Second, rc.NetworkTimeout)
			assert.Equal(t, 30*time.Second, c.SensorInterval())
			assert.Equal(t, sensor.Calibration{Beta: 3435}, c.Calibration())
		}, ""},

		{"include-normalize", `
name = "x"
include "./empty" {}`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "x", c.Name)
			}, ""},

		{"include-optional", `
include "serial-7" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "7", c.Serial)
			}, ""},

		{"include-overwrites", `
serial = "1"
relay { url = "ws://keep" }
include "serial-7" {}`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "7", c.Serial)
				assert.Equal(t, "ws://keep", c.Relay.URL)
			}, ""},

		{"validate-peripheral", `peripheral { reset_chip = "/dev/gpiochip0" }`,
			func(t testing.TB, c *Config) {
				err := c.ValidatePeripheral()
				require.Error(t, err)
				assert.True(t, errors.IsNotValid(err))
				c.Peripheral.Spi = "/dev/spidev0.0"
				assert.Error(t, c.ValidatePeripheral())
				c.Peripheral.ResetPin = "4"
				assert.NoError(t, c.ValidatePeripheral())
			}, ""},

		{"error-required", `include "non-exist" {}`, nil, "config required name=non-exist"},
		{"error-syntax", `hello`, nil, "key 'hello' expected start of object"},
		{"error-include-loop", `include "include-loop" {}`, nil, "config include loop: from=include-loop include=include-loop"},
	}
	mkCheck := func(c Case) func(*testing.T) {
		return func(t *testing.T) {
			log := log2.NewTest(t, log2.LDebug)
			fs := NewMockFullReader(map[string]string{
				"test-inline":  c.input,
				"empty":        "",
				"serial-7":     `serial = "7"`,
				"error-syntax": "hello",
				"include-loop": `include "include-loop" {}`,
			})
			cfg, err := Read(log, fs, "test-inline")
			if c.expectErr == "" {
				if err != nil {
					t.Fatalf("error expected=nil actual='%v'", errors.ErrorStack(err))
				}
				if c.check != nil {
					c.check(t, cfg)
				}
			} else {
				if err == nil || !strings.Contains(err.Error(), c.expectErr) {
					t.Fatalf("error expected='%s' actual='%v'", c.expectErr, err)
				}
			}
		}
	}
	for _, c := range cases {
		t.Run(c.name, mkCheck(c))
	}
}

func TestReadOs(t *testing.T) {
	t.Parallel()
	dir, err := ioutil.TempDir("", "domo-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "main.hcl"), []byte(testFull+`include "local.hcl" { optional = true }`), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "local.hcl"), []byte(`serial = "0042"`), 0644))

	cfg, err := Read(log2.NewTest(t, log2.LDebug), NewOsFullReader(), filepath.Join(dir, "main.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "0042", cfg.Serial)
	assert.Equal(t, "living room", cfg.Name)

	_, err = Read(log2.NewTest(t, log2.LDebug), NewOsFullReader(), filepath.Join(dir, "absent.hcl"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestExampleConfig(t *testing.T) {
	t.Parallel()
	cfg, err := Read(log2.NewTest(t, log2.LDebug), NewOsFullReader(), filepath.Join("..", "..", "domo.hcl"))
	require.NoError(t, err, errors.ErrorStack(err))
	require.NoError(t, cfg.Validate())
	// persistent outbound queue is opt-in
	assert.Equal(t, "", cfg.RelayConfig().QueuePath)
	assert.Equal(t, "/dev/spidev0.0", cfg.PeripheralConfig().SpiBus)
	assert.Equal(t, 200*time.Millisecond, cfg.ColorPoll())
}

// Package config reads HCL configuration with includes.
package config

import (
	"path/filepath"
	"time"

	"github.com/aykevl/domo-rpi/hardware/peripheral"
	"github.com/aykevl/domo-rpi/helpers"
	"github.com/aykevl/domo-rpi/internal/bridge"
	"github.com/aykevl/domo-rpi/log2"
	"github.com/aykevl/domo-rpi/relay"
	"github.com/aykevl/domo-rpi/sensor"
	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
)

const (
	DefaultSensorName     = "temperature"
	DefaultSensorInterval = bridge.DefaultInterval
	DefaultColorPoll      = bridge.DefaultColorPoll
)

type Config struct {
	includeSeen map[string]struct{}
	XXX_Include []Source `hcl:"include"`

	Name   string `hcl:"name"`
	Serial string `hcl:"serial"`

	Peripheral struct {
		Spi       string `hcl:"spi"`
		SpiSpeed  string `hcl:"spi_speed"`
		SpiMode   int    `hcl:"spi_mode"`
		ResetChip string `hcl:"reset_chip"`
		ResetPin  string `hcl:"reset_pin"`
		LogDebug  bool   `hcl:"log_debug"`
	} `hcl:"peripheral"`

	Relay struct {
		URL               string `hcl:"url"`
		QueuePath         string `hcl:"queue_path"`
		NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
		LogDebug          bool   `hcl:"log_debug"`
	} `hcl:"relay"`

	Sensor struct {
		Name              string  `hcl:"name"`
		IntervalSec       int     `hcl:"interval_sec"`
		ColorPollMs       int     `hcl:"color_poll_ms"`
		SeriesResistor    float64 `hcl:"series_resistor"`
		NominalResistance float64 `hcl:"nominal_resistance"`
		BetaCoefficient   float64 `hcl:"beta_coefficient"`
	} `hcl:"sensor"`
}

type Source struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func (c *Config) PeripheralConfig() *peripheral.Config {
	return &peripheral.Config{
		SpiBus:    c.Peripheral.Spi,
		SpiMode:   c.Peripheral.SpiMode,
		SpiSpeed:  c.Peripheral.SpiSpeed,
		ResetChip: c.Peripheral.ResetChip,
		ResetPin:  c.Peripheral.ResetPin,
	}
}

func (c *Config) RelayConfig() relay.Config {
	return relay.Config{
		URL:            c.Relay.URL,
		Name:           c.Name,
		Serial:         c.Serial,
		QueuePath:      c.Relay.QueuePath,
		NetworkTimeout: helpers.IntSecondDefault(c.Relay.NetworkTimeoutSec, relay.DefaultNetworkTimeout),
	}
}

// Calibration overrides, zero fields mean read from peripheral.
func (c *Config) Calibration() sensor.Calibration {
	return sensor.Calibration{
		SeriesResistor:    c.Sensor.SeriesResistor,
		NominalResistance: c.Sensor.NominalResistance,
		Beta:              c.Sensor.BetaCoefficient,
	}
}

func (c *Config) SensorName() string {
	if c.Sensor.Name == "" {
		return DefaultSensorName
	}
	return c.Sensor.Name
}

func (c *Config) SensorInterval() time.Duration {
	return helpers.IntSecondDefault(c.Sensor.IntervalSec, DefaultSensorInterval)
}

func (c *Config) ColorPoll() time.Duration {
	return helpers.IntMillisecondDefault(c.Sensor.ColorPollMs, DefaultColorPoll)
}

// ValidatePeripheral is enough for one-shot bus commands.
func (c *Config) ValidatePeripheral() error {
	if c.Peripheral.Spi == "" {
		return errors.NotValidf("config peripheral.spi empty")
	}
	if c.Peripheral.ResetChip != "" && c.Peripheral.ResetPin == "" {
		return errors.NotValidf("config peripheral.reset_pin empty with reset_chip=%s", c.Peripheral.ResetChip)
	}
	return nil
}

// Validate checks everything needed to run bridge.
func (c *Config) Validate() error {
	errs := make([]error, 0, 4)
	if c.Name == "" {
		errs = append(errs, errors.NotValidf("config name empty"))
	}
	if c.Serial == "" {
		errs = append(errs, errors.NotValidf("config serial empty"))
	}
	if c.Relay.URL == "" {
		errs = append(errs, errors.NotValidf("config relay.url empty"))
	}
	errs = append(errs, c.ValidatePeripheral())
	return helpers.FoldErrors(errs)
}

func (c *Config) read(log *log2.Log, fs FullReader, source Source, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []Source
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func Read(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.Errorf("code error config.Read() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		if err := osfs.SetBase(dir); err != nil {
			return nil, err
		}
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, Source{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

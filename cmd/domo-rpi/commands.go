package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aykevl/domo-rpi/cmd/domo-rpi/subcmd"
	"github.com/aykevl/domo-rpi/color"
	"github.com/aykevl/domo-rpi/hardware/peripheral"
	"github.com/aykevl/domo-rpi/helpers"
	"github.com/aykevl/domo-rpi/internal/bridge"
	"github.com/aykevl/domo-rpi/log2"
	"github.com/aykevl/domo-rpi/sensor"
	"github.com/juju/errors"
)

// raw thermistor ADC resolution
const tempRawBits = 10

type busClient interface {
	ReadNumber(op peripheral.Opcode, length int) (uint32, error)
	WriteNumber(op peripheral.Opcode, length int, value uint32) error
	ResyncRetry(ctx context.Context, attempts int, period time.Duration) error
	Reset() error
	ReadCalibration() (sensor.Calibration, error)
}

type app struct {
	log         *log2.Log
	bus         busClient
	out         io.Writer
	calibration sensor.Calibration // config overrides
}

func (self *app) commands() []subcmd.Mod {
	return []subcmd.Mod{
		{Name: "read", Usage: "<opcode|name> <2|4>", Main: self.cmdRead},
		{Name: "write", Usage: "<opcode|name> <2|4> <value>", Main: self.cmdWrite},
		{Name: "resync", Usage: "align frames with peripheral", Main: self.cmdResync},
		{Name: "reset", Usage: "pulse reset line", Main: self.cmdReset},
		{Name: "test", Aliases: []string{"test2"}, Usage: "self test, 2 bytes", Main: self.cmdTest(2)},
		{Name: "test4", Usage: "self test, 4 bytes", Main: self.cmdTest(4)},
		{Name: "temp-now", Usage: "current temperature", Main: self.cmdTemp(peripheral.OpTempNow)},
		{Name: "temp-avg", Usage: "average temperature", Main: self.cmdTemp(peripheral.OpTempAvg)},
		{Name: "temp-raw", Usage: "raw thermistor reading", Main: self.cmdTempRaw},
		{Name: "color", Usage: "current color", Main: self.cmdColor},
		{Name: "calibration", Usage: "thermistor constants", Main: self.cmdCalibration},
	}
}

// exec runs one command line, args[0] is command name.
func (self *app) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.Errorf("empty command")
	}
	mods := self.commands()
	if args[0] == "help" {
		fmt.Fprintln(self.out, subcmd.Help(mods))
		return nil
	}
	mod, err := subcmd.Parse(args[0], mods)
	if err != nil {
		return err
	}
	return mod.Main(ctx, args[1:])
}

func (self *app) cmdRead(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.Errorf("usage: read <opcode|name> <2|4>")
	}
	op, length, err := parseOpLength(args[0], args[1])
	if err != nil {
		return err
	}
	v, err := self.bus.ReadNumber(op, length)
	if err != nil {
		return err
	}
	fmt.Fprintf(self.out, "%s = %d (0x%0*x)\n", op, v, length*2, v)
	return nil
}

func (self *app) cmdWrite(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errors.Errorf("usage: write <opcode|name> <2|4> <value>")
	}
	op, length, err := parseOpLength(args[0], args[1])
	if err != nil {
		return err
	}
	v, err := helpers.ParseUint32(args[2])
	if err != nil {
		return err
	}
	if length == 2 && v > 0xffff {
		return errors.NotValidf("value=%d for length=2", v)
	}
	if err = self.bus.WriteNumber(op, length, v); err != nil {
		return err
	}
	fmt.Fprintf(self.out, "%s <- %d (0x%0*x)\n", op, v, length*2, v)
	return nil
}

func (self *app) cmdResync(ctx context.Context, args []string) error {
	if err := self.bus.ResyncRetry(ctx, bridge.DefaultResyncAttempts, peripheral.DefaultResyncPeriod); err != nil {
		return err
	}
	fmt.Fprintln(self.out, "resync ok")
	return nil
}

func (self *app) cmdReset(ctx context.Context, args []string) error {
	if err := self.bus.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(self.out, "reset ok")
	return nil
}

func (self *app) cmdTest(length int) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		v, err := self.bus.ReadNumber(peripheral.OpSelfTest, length)
		if err != nil {
			return err
		}
		fmt.Fprintf(self.out, "test: 0x%0*x\n", length*2, v)
		return nil
	}
}

func (self *app) cmdTemp(op peripheral.Opcode) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		v, err := self.bus.ReadNumber(op, 2)
		if err != nil {
			return err
		}
		fmt.Fprintf(self.out, "%s: %.2f°C\n", op, sensor.DecodeTemperature(v))
		return nil
	}
}

func (self *app) cmdTempRaw(ctx context.Context, args []string) error {
	v, err := self.bus.ReadNumber(peripheral.OpTempRaw, 2)
	if err != nil {
		return err
	}
	cal, err := self.bus.ReadCalibration()
	if err != nil {
		self.log.Errorf("calibration read err=%v, using defaults", err)
		cal = sensor.Calibration{}
	}
	cal = self.calibration.Merge(cal).Merge(sensor.DefaultCalibration)
	fmt.Fprintf(self.out, "temp-raw: %d (%.2f°C)\n", v, sensor.RawToCelsius(v, tempRawBits, cal))
	return nil
}

func (self *app) cmdColor(ctx context.Context, args []string) error {
	v, err := self.bus.ReadNumber(peripheral.OpColor, 4)
	if err != nil {
		return err
	}
	b, err := json.Marshal(color.Decode(v))
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(self.out, "color: 0x%08x %s\n", v, b)
	return nil
}

func (self *app) cmdCalibration(ctx context.Context, args []string) error {
	cal, err := self.bus.ReadCalibration()
	if err != nil {
		return err
	}
	fmt.Fprintf(self.out, "series-resistor=%g nominal-resistance=%g beta=%g\n",
		cal.SeriesResistor, cal.NominalResistance, cal.Beta)
	return nil
}

func parseOpLength(sop, slength string) (peripheral.Opcode, int, error) {
	op, err := peripheral.ParseOpcode(sop)
	if err != nil {
		return 0, 0, err
	}
	length, err := strconv.Atoi(slength)
	if err != nil || (length != 2 && length != 4) {
		return 0, 0, errors.NotValidf("length=%s, expected 2 or 4", slength)
	}
	return op, length, nil
}

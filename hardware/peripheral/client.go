// Package peripheral talks to the sensor/light microcontroller over SPI.
//
// Every exchange is a frame [command][data LE 2|4 bytes][crc8], transferred one byte
// at a time with ByteDelay before each byte. Peripheral firmware needs the gap to
// prepare next byte.
package peripheral

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aykevl/domo-rpi/crc"
	"github.com/aykevl/domo-rpi/log2"
	"github.com/aykevl/domo-rpi/sensor"
	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
)

const modName string = "peripheral"

const (
	ByteDelay           = 1 * time.Millisecond
	ResetPulse          = 10 * time.Millisecond
	DefaultResyncPeriod = 100 * time.Millisecond
)

const resyncSentinel byte = 0xff

// Self-test getter response: data 0xabcd little endian, crc8(20 cd ab).
var resyncSignature = [3]byte{0xcd, 0xab, 0x1f}

type Client struct {
	Log  *log2.Log
	txlk sync.Mutex
	hw   hardware
	stat Stat
}

type Stat struct {
	Request       uint32
	Error         uint32
	ChecksumError uint32
	Resync        uint32
	Reset         uint32
}

func NewClient(config *Config, log *log2.Log) (*Client, error) {
	self := &Client{Log: log}
	if err := self.hw.open(config); err != nil {
		_ = self.hw.Close()
		return nil, errors.Annotate(err, modName)
	}
	return self, nil
}

func (self *Client) Close() error {
	self.txlk.Lock()
	defer self.txlk.Unlock()
	return self.hw.Close()
}

func (self *Client) Stat() Stat {
	return Stat{
		Request:       atomic.LoadUint32(&self.stat.Request),
		Error:         atomic.LoadUint32(&self.stat.Error),
		ChecksumError: atomic.LoadUint32(&self.stat.ChecksumError),
		Resync:        atomic.LoadUint32(&self.stat.Resync),
		Reset:         atomic.LoadUint32(&self.stat.Reset),
	}
}

func (self *Client) HasResetLine() bool { return self.hw.gpioChip != nil }

// ReadNumber sends getter command and reads length data bytes and checksum.
func (self *Client) ReadNumber(op Opcode, length int) (uint32, error) {
	cmd, err := Command(op, true, length)
	if err != nil {
		return 0, err
	}
	atomic.AddUint32(&self.stat.Request, 1)

	self.txlk.Lock()
	defer self.txlk.Unlock()

	var buf [6]byte
	buf[0] = cmd
	if _, err = self.txByte(cmd); err != nil {
		return 0, err
	}
	for i := 1; i <= length+1; i++ {
		if buf[i], err = self.txByte(0); err != nil {
			return 0, err
		}
	}
	received := buf[length+1]
	computed := crc.CRC8_p07_n(0, buf[:length+1])
	if received != computed {
		atomic.AddUint32(&self.stat.ChecksumError, 1)
		data := make([]byte, length)
		copy(data, buf[1:length+1])
		return 0, &ChecksumError{Command: cmd, Received: received, Computed: computed, Data: data}
	}

	var value uint32
	if length == 2 {
		value = uint32(binary.LittleEndian.Uint16(buf[1:3]))
	} else {
		value = binary.LittleEndian.Uint32(buf[1:5])
	}
	self.Log.Debugf("%s read %s=%d (%x)", modName, op, value, buf[:length+2])
	return value, nil
}

// WriteNumber sends setter frame. Peripheral does not respond.
func (self *Client) WriteNumber(op Opcode, length int, value uint32) error {
	cmd, err := Command(op, false, length)
	if err != nil {
		return err
	}
	atomic.AddUint32(&self.stat.Request, 1)

	var buf [6]byte
	buf[0] = cmd
	if length == 2 {
		binary.LittleEndian.PutUint16(buf[1:3], uint16(value))
	} else {
		binary.LittleEndian.PutUint32(buf[1:5], value)
	}
	buf[length+1] = crc.CRC8_p07_n(0, buf[:length+1])
	frame := buf[:length+2]

	self.txlk.Lock()
	defer self.txlk.Unlock()
	self.Log.Debugf("%s write %s=%d (%x)", modName, op, value, frame)
	for _, b := range frame {
		if _, err = self.txByte(b); err != nil {
			return err
		}
	}
	return nil
}

// Resync restores frame alignment. Sends self-test probe until sentinel byte,
// then expects fixed signature. Only ctx limits the probe loop.
func (self *Client) Resync(ctx context.Context) error {
	atomic.AddUint32(&self.stat.Resync, 1)
	probe, _ := Command(OpSelfTest, true, 2)

	self.txlk.Lock()
	defer self.txlk.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return errors.Annotatef(err, "%s resync", modName)
		}
		if _, err := self.txByte(probe); err != nil {
			return err
		}
		b, err := self.txByte(0)
		if err != nil {
			return err
		}
		if b == resyncSentinel {
			break
		}
	}

	var got [3]byte
	for i := range got {
		b, err := self.txByte(0)
		if err != nil {
			return err
		}
		got[i] = b
	}
	if got != resyncSignature {
		atomic.AddUint32(&self.stat.Error, 1)
		return &ResyncError{Got: got[:]}
	}
	self.Log.Debugf("%s resync ok", modName)
	return nil
}

// ResyncRetry bounds Resync by attempts, each limited by period.
// When all attempts failed and reset line is available, pulses reset and tries once more.
func (self *Client) ResyncRetry(ctx context.Context, attempts int, period time.Duration) error {
	if period <= 0 {
		period = DefaultResyncPeriod
	}
	if attempts <= 0 {
		attempts = 1
	}
	err := self.resyncRound(ctx, attempts, period)
	if err == nil || !self.HasResetLine() || ctx.Err() != nil {
		return err
	}
	self.Log.Errorf("%s resync failed, pulse reset err=%v", modName, err)
	if errReset := self.Reset(); errReset != nil {
		return errors.Annotatef(errReset, "%s resync err=%v", modName, err)
	}
	return self.resyncRound(ctx, attempts, period)
}

func (self *Client) resyncRound(ctx context.Context, attempts int, period time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		tctx, cancel := context.WithTimeout(ctx, period)
		err = self.Resync(tctx)
		cancel()
		if err == nil {
			return nil
		}
		if IsBusIO(err) || ctx.Err() != nil {
			return err
		}
		self.Log.Debugf("%s resync attempt=%d/%d err=%v", modName, i, attempts, err)
	}
	return errors.Annotatef(err, "%s resync attempts=%d", modName, attempts)
}

// Reset pulses active low reset line of microcontroller.
// Line is released afterwards, so firmware pull-up keeps it running.
func (self *Client) Reset() error {
	if self.hw.gpioChip == nil {
		return ErrNoResetLine
	}
	atomic.AddUint32(&self.stat.Reset, 1)

	self.txlk.Lock()
	defer self.txlk.Unlock()

	lines, err := self.hw.gpioChip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, consumerLabel, self.hw.resetPin)
	if err != nil {
		return errors.Annotatef(err, "%s reset open line=%d", modName, self.hw.resetPin)
	}
	set := lines.SetFunc(self.hw.resetPin)
	set(0)
	if err = lines.Flush(); err != nil {
		_ = lines.Close()
		return errors.Annotatef(err, "%s reset low", modName)
	}
	self.hw.sleep(ResetPulse)
	set(1)
	if err = lines.Flush(); err != nil {
		_ = lines.Close()
		return errors.Annotatef(err, "%s reset high", modName)
	}
	self.Log.Debugf("%s reset pulse line=%d", modName, self.hw.resetPin)
	return errors.Annotate(lines.Close(), "reset line close")
}

// ReadCalibration reads thermistor constants stored in peripheral.
func (self *Client) ReadCalibration() (sensor.Calibration, error) {
	var cal sensor.Calibration
	fields := []struct {
		op  Opcode
		dst *float64
	}{
		{OpSeriesResistor, &cal.SeriesResistor},
		{OpNominalResistance, &cal.NominalResistance},
		{OpBetaCoefficient, &cal.Beta},
	}
	for _, f := range fields {
		v, err := self.ReadNumber(f.op, 2)
		if err != nil {
			return cal, errors.Annotatef(err, "%s calibration %s", modName, f.op)
		}
		*f.dst = float64(v)
	}
	return cal, nil
}

// Caller must hold txlk.
func (self *Client) txByte(b byte) (byte, error) {
	self.hw.sleep(ByteDelay)
	send := [1]byte{b}
	var recv [1]byte
	if err := self.hw.spiTx(send[:], recv[:]); err != nil {
		atomic.AddUint32(&self.stat.Error, 1)
		return 0, &BusIOError{Op: "tx", Err: err}
	}
	return recv[0], nil
}

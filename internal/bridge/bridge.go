// Package bridge polls peripheral and forwards readings to relay,
// and applies actuator commands from relay to peripheral.
package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aykevl/domo-rpi/color"
	"github.com/aykevl/domo-rpi/hardware/peripheral"
	"github.com/aykevl/domo-rpi/log2"
	"github.com/aykevl/domo-rpi/sensor"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

const (
	DefaultResyncAttempts = 5
	DefaultInterval       = 60 * time.Second
	DefaultColorPoll      = 200 * time.Millisecond
)

type Peripheral interface {
	ReadNumber(op peripheral.Opcode, length int) (uint32, error)
	WriteNumber(op peripheral.Opcode, length int, value uint32) error
	ResyncRetry(ctx context.Context, attempts int, period time.Duration) error
	ReadCalibration() (sensor.Calibration, error)
}

type Sender interface {
	SendSensorLog(name string, value float64, t time.Time, kind string, interval time.Duration) error
	SendColor(c color.Color) error
}

type Config struct {
	SensorName     string
	Interval       time.Duration
	ColorPoll      time.Duration
	Calibration    sensor.Calibration // non-zero fields override peripheral
	ResyncAttempts int
}

type Bridge struct {
	config Config
	log    *log2.Log
	bus    Peripheral
	relay  Sender
	alive  *alive.Alive
	now    func() time.Time

	needResync  uint32
	calibration sensor.Calibration

	colorlk   sync.Mutex
	lastColor uint32
	seenColor bool
}

func New(config Config, bus Peripheral, relay Sender, log *log2.Log) *Bridge {
	if config.ResyncAttempts <= 0 {
		config.ResyncAttempts = DefaultResyncAttempts
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.ColorPoll <= 0 {
		config.ColorPoll = DefaultColorPoll
	}
	return &Bridge{
		config: config,
		log:    log,
		bus:    bus,
		relay:  relay,
		alive:  alive.NewAlive(),
		now:    time.Now,
	}
}

// Init aligns bus frames and reads calibration.
func (self *Bridge) Init(ctx context.Context) error {
	if err := self.bus.ResyncRetry(ctx, self.config.ResyncAttempts, peripheral.DefaultResyncPeriod); err != nil {
		return errors.Annotate(err, "bridge init")
	}
	cal, err := self.bus.ReadCalibration()
	if err != nil {
		self.log.Errorf("bridge calibration read err=%v, using defaults", err)
		cal = sensor.Calibration{}
	}
	self.calibration = self.config.Calibration.Merge(cal).Merge(sensor.DefaultCalibration)
	self.log.Infof("bridge calibration %+v", self.calibration)
	return nil
}

func (self *Bridge) Calibration() sensor.Calibration { return self.calibration }

func (self *Bridge) Start() {
	self.goLoop("temperature", self.config.Interval, self.PollTemperature)
	self.goLoop("color", self.config.ColorPoll, self.PollColor)
}

func (self *Bridge) Stop() { self.alive.Stop() }
func (self *Bridge) Wait() { self.alive.Wait() }

// PollTemperature reads average temperature and queues sensor log.
func (self *Bridge) PollTemperature() error {
	raw, err := self.bus.ReadNumber(peripheral.OpTempAvg, 2)
	if err != nil {
		return errors.Annotate(err, "temperature")
	}
	value := sensor.DecodeTemperature(raw)
	self.log.Debugf("bridge temperature raw=%d value=%.2f", raw, value)
	return self.relay.SendSensorLog(self.config.SensorName, value, self.now(), sensor.KindTemperature, self.config.Interval)
}

// PollColor reads actuator state and queues change for server.
func (self *Bridge) PollColor() error {
	self.colorlk.Lock()
	defer self.colorlk.Unlock()
	raw, err := self.bus.ReadNumber(peripheral.OpColor, 4)
	if err != nil {
		return errors.Annotate(err, "color")
	}
	if self.seenColor && raw == self.lastColor {
		return nil
	}
	self.lastColor, self.seenColor = raw, true
	c := color.Decode(raw)
	self.log.Debugf("bridge color change raw=%08x %s", raw, c)
	return self.relay.SendColor(c)
}

// OnColor applies color command from server. Written word is not echoed back.
func (self *Bridge) OnColor(c color.Color) {
	raw, err := c.Encode()
	if err != nil {
		self.log.Warningf("bridge color command %s err=%v", c, err)
		return
	}
	self.colorlk.Lock()
	defer self.colorlk.Unlock()
	if err = self.bus.WriteNumber(peripheral.OpColor, 4, raw); err != nil {
		self.log.Errorf("bridge color write raw=%08x err=%v", raw, err)
		self.markBusError(err)
		return
	}
	self.lastColor, self.seenColor = raw, true
}

func (self *Bridge) goLoop(name string, period time.Duration, fun func() error) {
	if !self.alive.Add(1) {
		return
	}
	go func() {
		defer self.alive.Done()
		tick := time.NewTicker(period)
		defer tick.Stop()
		for {
			self.cycle(name, fun)
			select {
			case <-tick.C:
			case <-self.alive.StopChan():
				return
			}
		}
	}()
}

func (self *Bridge) cycle(name string, fun func() error) {
	if atomic.LoadUint32(&self.needResync) != 0 {
		if err := self.resync(); err != nil {
			self.log.Errorf("bridge %s skip, resync err=%v", name, err)
			return
		}
	}
	err := fun()
	switch {
	case err == nil:
	case peripheral.IsChecksum(err):
		self.log.Errorf("bridge %s skip cycle: %v", name, err)
	default:
		self.log.Errorf("bridge %s err=%v", name, err)
		self.markBusError(err)
	}
}

func (self *Bridge) markBusError(err error) {
	if peripheral.IsBusIO(err) || peripheral.IsResync(err) {
		atomic.StoreUint32(&self.needResync, 1)
	}
}

func (self *Bridge) resync() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-self.alive.StopChan():
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := self.bus.ResyncRetry(ctx, self.config.ResyncAttempts, peripheral.DefaultResyncPeriod); err != nil {
		return err
	}
	atomic.StoreUint32(&self.needResync, 0)
	return nil
}

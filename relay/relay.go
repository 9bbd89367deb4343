// Package relay keeps connection to remote service alive, forever.
//
// Contract:
// - Send* methods never wait for network, messages go to outbox
// - outbox is drained only while server time is verified, otherwise messages are dropped
// - connection errors are not fatal, relay reconnects with exponential backoff
// - inbound actuator commands are delivered to Config.OnColor
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aykevl/domo-rpi/color"
	"github.com/aykevl/domo-rpi/helpers"
	"github.com/aykevl/domo-rpi/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

const (
	DefaultNetworkTimeout = 30 * time.Second
	DefaultTimeTolerance  = 60 * time.Second
	DefaultBackoffMin     = 1 * time.Second
	DefaultBackoffMax     = 60 * time.Second
)

type Config struct {
	URL            string
	Name           string
	Serial         string
	QueuePath      string // empty = memory, default; replayed messages are dropped until trusted
	NetworkTimeout time.Duration
	TimeTolerance  time.Duration
	BackoffMin     time.Duration
	BackoffMax     time.Duration

	OnColor func(color.Color)
	OnState func(State)
}

type Stat struct {
	Connects uint32
	Failures uint32
	Sent     uint32
	Dropped  uint32
	Received uint32
	Backoff  time.Duration // delay before next reconnect attempt
}

type Relay struct {
	config  Config
	log     *log2.Log
	alive   *alive.Alive
	backoff *helpers.Backoff
	outbox  *outbox
	now     func() time.Time

	state   uint32 // State
	trusted uint32
	stat    Stat

	connlk sync.Mutex
	conn   conn
}

func New(config Config, log *log2.Log) (*Relay, error) {
	if config.URL == "" {
		return nil, errors.NotValidf("relay url empty")
	}
	if config.NetworkTimeout <= 0 {
		config.NetworkTimeout = DefaultNetworkTimeout
	}
	if config.TimeTolerance <= 0 {
		config.TimeTolerance = DefaultTimeTolerance
	}
	if config.BackoffMin <= 0 {
		config.BackoffMin = DefaultBackoffMin
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = DefaultBackoffMax
	}
	ob, err := openOutbox(config.QueuePath, log)
	if err != nil {
		return nil, err
	}
	self := &Relay{
		config: config,
		log:    log,
		alive:  alive.NewAlive(),
		backoff: &helpers.Backoff{
			Min: config.BackoffMin,
			Max: config.BackoffMax,
			K:   2,
		},
		outbox: ob,
		now:    time.Now,
	}
	return self, nil
}

func (self *Relay) State() State  { return State(atomic.LoadUint32(&self.state)) }
func (self *Relay) Trusted() bool { return atomic.LoadUint32(&self.trusted) == 1 }

func (self *Relay) Stat() Stat {
	return Stat{
		Connects: atomic.LoadUint32(&self.stat.Connects),
		Failures: atomic.LoadUint32(&self.stat.Failures),
		Sent:     atomic.LoadUint32(&self.stat.Sent),
		Dropped:  atomic.LoadUint32(&self.stat.Dropped),
		Received: atomic.LoadUint32(&self.stat.Received),
		Backoff:  self.backoff.Next(),
	}
}

// Start runs connect loop in background.
func (self *Relay) Start() {
	if !self.alive.Add(1) {
		return
	}
	go func() {
		defer self.alive.Done()
		self.loop()
	}()
}

// Run blocks in connect loop until Stop.
func (self *Relay) Run() {
	if !self.alive.Add(1) {
		return
	}
	defer self.alive.Done()
	self.loop()
}

// Stop returns immediately, Close waits.
func (self *Relay) Stop() {
	self.alive.Stop()
	self.connlk.Lock()
	if self.conn != nil {
		_ = self.conn.Close()
	}
	self.connlk.Unlock()
}

func (self *Relay) Close() error {
	self.Stop()
	self.alive.Wait()
	return self.outbox.Close()
}

func (self *Relay) Send(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Annotate(err, "relay marshal")
	}
	return self.outbox.Push(b)
}

func (self *Relay) SendSensorLog(name string, value float64, t time.Time, kind string, interval time.Duration) error {
	return self.Send(&MsgSensorLog{
		Message:  MessageSensorLog,
		Name:     name,
		Value:    value,
		Time:     t.Unix(),
		Type:     kind,
		Interval: int64(interval / time.Second),
	})
}

func (self *Relay) SendColor(c color.Color) error {
	return self.Send(&MsgActuator{
		Message: MessageActuator,
		Name:    ActuatorColor,
		Value:   c,
	})
}

func (self *Relay) loop() {
	for self.alive.IsRunning() {
		err := self.session()
		self.fire(EventError)
		if !self.alive.IsRunning() {
			break
		}
		atomic.AddUint32(&self.stat.Failures, 1)
		delay := self.backoff.Failure()
		self.log.Errorf("relay %v (retrying in %s)", err, delay)
		if !helpers.AliveSleep(self.alive, delay) {
			break
		}
		self.log.Debugf("relay reconnecting")
	}
	self.log.Debugf("relay stopped")
}

// session is one connection lifetime, returns why it ended.
func (self *Relay) session() error {
	self.fire(EventDial)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-self.alive.StopChan():
			cancel()
		case <-ctx.Done():
		}
	}()

	c, err := dial(ctx, self.config.URL, self.config.NetworkTimeout)
	if err != nil {
		return errors.Annotatef(err, "connect url=%s", self.config.URL)
	}
	defer c.Close()
	if !self.setConn(c) {
		return errors.New("stopped")
	}
	defer self.setConn(nil)

	atomic.AddUint32(&self.stat.Connects, 1)
	atomic.StoreUint32(&self.trusted, 0)
	self.backoff.Reset()
	self.fire(EventConnected)
	self.log.Infof("relay connected to %s", c.RemoteAddr())

	hello, err := json.Marshal(&MsgConnect{
		Message: MessageConnect,
		Name:    self.config.Name,
		Serial:  self.config.Serial,
	})
	if err != nil {
		return errors.Annotate(err, "hello marshal")
	}
	if err = c.WriteMessage(hello); err != nil {
		return errors.Annotate(err, "hello")
	}

	done := make(chan struct{})
	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		self.sendLoop(c, done)
	}()
	err = self.receiveLoop(c)
	close(done)
	_ = c.Close()
	<-sendDone
	return err
}

func (self *Relay) setConn(c conn) bool {
	self.connlk.Lock()
	defer self.connlk.Unlock()
	if c != nil && !self.alive.IsRunning() {
		return false
	}
	self.conn = c
	return true
}

// Exactly one send task per connection. Ends on write error or when connection is done.
func (self *Relay) sendLoop(c conn, done <-chan struct{}) {
	for {
		select {
		case b := <-self.outbox.C():
			if !self.Trusted() {
				atomic.AddUint32(&self.stat.Dropped, 1)
				self.log.Warningf("relay time not verified, cannot make sure server and client time is about the same, drop message=%s", b)
				continue
			}
			if err := c.WriteMessage(b); err != nil {
				self.log.Errorf("relay send failed, end send task message=%s err=%v", b, err)
				_ = c.Close()
				return
			}
			atomic.AddUint32(&self.stat.Sent, 1)

		case <-done:
			return
		}
	}
}

func (self *Relay) receiveLoop(c conn) error {
	for {
		b, err := c.ReadMessage()
		if err == errBinaryMessage {
			self.log.Warningf("relay received binary message len=%d, ignored", len(b))
			continue
		}
		if err != nil {
			return err
		}
		atomic.AddUint32(&self.stat.Received, 1)
		self.handle(b)
	}
}

func (self *Relay) handle(b []byte) {
	msg, err := decodeServer(b)
	if err != nil {
		self.log.Warningf("relay %v", err)
		return
	}
	switch msg.Message {
	case MessageTime:
		self.onTime(&msg)
	case MessageActuator:
		self.onActuator(&msg, b)
	default:
		self.log.Warningf("relay unknown message: %s", b)
	}
}

func (self *Relay) onTime(msg *MsgServer) {
	if msg.Timestamp == nil {
		self.log.Warningf("relay no timestamp sent in time message")
		return
	}
	// compare against bounds, subtracting arbitrary timestamp may overflow
	now, ts := self.now().Unix(), *msg.Timestamp
	tol := int64(self.config.TimeTolerance / time.Second)
	if ts <= now-tol || ts >= now+tol {
		self.log.Warningf("relay time not in sync now=%d timestamp=%d", now, ts)
		return
	}
	atomic.StoreUint32(&self.trusted, 1)
	self.fire(EventTimeVerified)
}

func (self *Relay) onActuator(msg *MsgServer, b []byte) {
	if msg.Name == nil {
		self.log.Warningf("relay no name sent with actuator message: %s", b)
		return
	}
	if len(msg.Value) == 0 || string(msg.Value) == "null" {
		self.log.Warningf("relay no value sent with actuator message: %s", b)
		return
	}
	switch *msg.Name {
	case ActuatorColor:
		var c color.Color
		if err := json.Unmarshal(msg.Value, &c); err != nil {
			self.log.Warningf("relay %v", &MessageDecodeError{Raw: b, Err: err})
			return
		}
		self.log.Debugf("relay color change from server: %s", c)
		if self.config.OnColor != nil {
			self.config.OnColor(c)
		}
	default:
		self.log.Warningf("relay unknown actuator: %s", *msg.Name)
	}
}

func (self *Relay) fire(ev Event) State {
	for {
		cur := State(atomic.LoadUint32(&self.state))
		next, ok := transition(cur, ev)
		if !ok {
			self.log.Debugf("relay ignore event=%s state=%s", ev, cur)
			return cur
		}
		if atomic.CompareAndSwapUint32(&self.state, uint32(cur), uint32(next)) {
			if next != cur {
				self.log.Debugf("relay state %s -> %s", cur, next)
				if self.config.OnState != nil {
					self.config.OnState(next)
				}
			}
			return next
		}
	}
}

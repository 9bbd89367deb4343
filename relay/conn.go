package relay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
)

// Message oriented connection, one JSON document per message.
type conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(b []byte) error
	Close() error
	RemoteAddr() string
}

type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("relay %s: %v", e.Op, e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

func IsConnectionError(err error) bool {
	_, ok := errors.Cause(err).(*ConnectionError)
	return ok
}

var errBinaryMessage = errors.New("binary message not supported")

// dial supports ws, wss (websocket text frames) and tcp (newline delimited JSON).
func dial(ctx context.Context, rawurl string, timeout time.Duration) (conn, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, errors.Annotatef(err, "relay url=%s", rawurl)
	}
	switch u.Scheme {
	case "ws", "wss":
		d := websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: timeout,
		}
		c, _, err := d.DialContext(ctx, rawurl, nil)
		if err != nil {
			return nil, &ConnectionError{Op: "dial", Err: err}
		}
		return &wsConn{c: c, timeout: timeout}, nil

	case "tcp":
		d := net.Dialer{Timeout: timeout}
		c, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, &ConnectionError{Op: "dial", Err: err}
		}
		return newLineConn(c, timeout), nil
	}
	return nil, errors.NotSupportedf("relay url scheme=%s", u.Scheme)
}

type wsConn struct {
	c       *websocket.Conn
	timeout time.Duration
	wlk     sync.Mutex
}

func (self *wsConn) ReadMessage() ([]byte, error) {
	for {
		kind, b, err := self.c.ReadMessage()
		if err != nil {
			return nil, &ConnectionError{Op: "read", Err: err}
		}
		switch kind {
		case websocket.TextMessage:
			return b, nil
		case websocket.BinaryMessage:
			return b, errBinaryMessage
		}
	}
}

func (self *wsConn) WriteMessage(b []byte) error {
	self.wlk.Lock()
	defer self.wlk.Unlock()
	if self.timeout != 0 {
		_ = self.c.SetWriteDeadline(time.Now().Add(self.timeout))
	}
	if err := self.c.WriteMessage(websocket.TextMessage, b); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

func (self *wsConn) Close() error       { return self.c.Close() }
func (self *wsConn) RemoteAddr() string { return self.c.RemoteAddr().String() }

type lineConn struct {
	c       net.Conn
	r       *bufio.Reader
	timeout time.Duration
	wlk     sync.Mutex
}

func newLineConn(c net.Conn, timeout time.Duration) *lineConn {
	return &lineConn{c: c, r: bufio.NewReader(c), timeout: timeout}
}

func (self *lineConn) ReadMessage() ([]byte, error) {
	for {
		line, err := self.r.ReadBytes('\n')
		if err != nil {
			return nil, &ConnectionError{Op: "read", Err: err}
		}
		if line = bytes.TrimSpace(line); len(line) != 0 {
			return line, nil
		}
	}
}

func (self *lineConn) WriteMessage(b []byte) error {
	self.wlk.Lock()
	defer self.wlk.Unlock()
	if self.timeout != 0 {
		_ = self.c.SetWriteDeadline(time.Now().Add(self.timeout))
	}
	buf := make([]byte, 0, len(b)+1)
	buf = append(append(buf, b...), '\n')
	if _, err := self.c.Write(buf); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

func (self *lineConn) Close() error       { return self.c.Close() }
func (self *lineConn) RemoteAddr() string { return self.c.RemoteAddr().String() }

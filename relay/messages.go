package relay

import (
	"encoding/json"
	"fmt"

	"github.com/aykevl/domo-rpi/color"
)

const (
	MessageConnect   = "connect"
	MessageSensorLog = "sensorLog"
	MessageActuator  = "actuator"
	MessageTime      = "time"

	ActuatorColor = "color"
)

// Hello, first message on every connection.
type MsgConnect struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Serial  string `json:"serial"`
}

type MsgSensorLog struct {
	Message  string  `json:"message"`
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Time     int64   `json:"time"` // unix seconds
	Type     string  `json:"type"`
	Interval int64   `json:"interval"` // seconds
}

type MsgActuator struct {
	Message string      `json:"message"`
	Name    string      `json:"name"`
	Value   color.Color `json:"value"`
}

// Inbound, fields depend on Message.
type MsgServer struct {
	Message   string          `json:"message"`
	Name      *string         `json:"name"`
	Timestamp *int64          `json:"timestamp"`
	Value     json.RawMessage `json:"value"`
}

type MessageDecodeError struct {
	Raw []byte
	Err error
}

func (e *MessageDecodeError) Error() string {
	return fmt.Sprintf("invalid message from server: %v message=%s", e.Err, e.Raw)
}
func (e *MessageDecodeError) Unwrap() error { return e.Err }

func decodeServer(b []byte) (MsgServer, error) {
	var m MsgServer
	if err := json.Unmarshal(b, &m); err != nil {
		return m, &MessageDecodeError{Raw: b, Err: err}
	}
	return m, nil
}

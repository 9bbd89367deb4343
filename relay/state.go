package relay

import "fmt"

type State uint32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnectedUnverified
	StateConnectedVerified
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnectedUnverified:
		return "connected-unverified"
	case StateConnectedVerified:
		return "connected-verified"
	}
	return fmt.Sprintf("state(%d)", uint32(s))
}

type Event uint8

const (
	EventDial Event = iota
	EventConnected
	EventTimeVerified
	EventError
)

func (e Event) String() string {
	switch e {
	case EventDial:
		return "dial"
	case EventConnected:
		return "connected"
	case EventTimeVerified:
		return "time-verified"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

type edge struct {
	from State
	ev   Event
}

// Error from any state leads to Disconnected.
var transitions = map[edge]State{
	{StateDisconnected, EventDial}:                StateConnecting,
	{StateConnecting, EventConnected}:             StateConnectedUnverified,
	{StateConnectedUnverified, EventTimeVerified}: StateConnectedVerified,
	{StateConnectedVerified, EventTimeVerified}:   StateConnectedVerified,

	{StateDisconnected, EventError}:        StateDisconnected,
	{StateConnecting, EventError}:          StateDisconnected,
	{StateConnectedUnverified, EventError}: StateDisconnected,
	{StateConnectedVerified, EventError}:   StateDisconnected,
}

// transition returns next state and false for illegal event, state unchanged.
func transition(s State, ev Event) (State, bool) {
	next, ok := transitions[edge{s, ev}]
	if !ok {
		return s, false
	}
	return next, true
}

package connection

// Event is an input to the connection state machine.
type Event int

const (
	// EventDial fires when a connection attempt starts.
	EventDial Event = iota

	// EventOpened fires when a dial succeeds.
	EventOpened

	// EventDropped fires when an established connection closes unexpectedly.
	EventDropped

	// EventDialFailed fires when a dial attempt fails.
	EventDialFailed

	// EventExhausted fires when the attempt count reaches the configured
	// maximum without a success.
	EventExhausted

	// EventClosed fires on an explicit close of the handle.
	EventClosed
)

func (e Event) String() string {
	switch e {
	case EventDial:
		return "dial"
	case EventOpened:
		return "opened"
	case EventDropped:
		return "dropped"
	case EventDialFailed:
		return "dial_failed"
	case EventExhausted:
		return "exhausted"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transition returns the status that follows s on event ev. It is a pure
// function; attempt accounting and scheduling live in the manager.
// Inputs that make no sense for the current status leave it unchanged.
func Transition(s Status, ev Event) Status {
	switch ev {
	case EventDial:
		switch s {
		case StatusDisconnected, StatusFailed:
			return StatusConnecting
		default:
			// A retry dial while Reconnecting stays Reconnecting.
			return s
		}

	case EventOpened:
		switch s {
		case StatusConnecting, StatusReconnecting:
			return StatusConnected
		default:
			return s
		}

	case EventDropped:
		if s == StatusConnected {
			return StatusReconnecting
		}
		return s

	case EventDialFailed:
		switch s {
		case StatusConnecting, StatusReconnecting:
			return StatusReconnecting
		default:
			return s
		}

	case EventExhausted:
		switch s {
		case StatusConnecting, StatusReconnecting:
			return StatusFailed
		default:
			return s
		}

	case EventClosed:
		return StatusDisconnected
	}

	return s
}

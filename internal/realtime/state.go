package realtime

// State is the connection state of a Channel.
type State int

const (
	// StateDisconnected is the initial state, and the state between
	// reconnect attempts or while there is no session.
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateClosed is terminal. It is only entered through Close.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

package ngpas

import "sync/atomic"

// ConnState is the operational state of the TCP link to the gateway.
type ConnState uint32

const (
	// AbsentState means no live socket exists.
	AbsentState ConnState = iota
	// ConnectingState means a dial/handshake is in flight.
	ConnectingState
	// OpenState means the socket is live and the handshake completed.
	OpenState
)

func (s ConnState) String() string {
	switch s {
	case AbsentState:
		return "Absent"
	case ConnectingState:
		return "Connecting"
	case OpenState:
		return "Open"
	default:
		return "Unknown"
	}
}

// AtomicConnState holds a ConnState with atomic transitions.
type AtomicConnState struct {
	state atomic.Uint32
}

// Get returns the current state.
func (st *AtomicConnState) Get() ConnState {
	return ConnState(st.state.Load())
}

func (st *AtomicConnState) IsAbsent() bool { return st.Get() == AbsentState }

func (st *AtomicConnState) IsOpen() bool { return st.Get() == OpenState }

// ToConnecting transitions Absent -> Connecting.
func (st *AtomicConnState) ToConnecting() bool {
	return st.state.CompareAndSwap(uint32(AbsentState), uint32(ConnectingState))
}

// ToOpen transitions Connecting -> Open.
func (st *AtomicConnState) ToOpen() bool {
	if st.IsOpen() {
		return true
	}

	return st.state.CompareAndSwap(uint32(ConnectingState), uint32(OpenState))
}

// ToAbsent tears the state down from any state.
func (st *AtomicConnState) ToAbsent() {
	st.state.Store(uint32(AbsentState))
}

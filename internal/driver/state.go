// Package driver implements the sensor acquisition driver contract:
// per-board state machine (Uninit→Initialized→Running→Stopped→
// {Initialized|Terminated}), DRDY-interrupt-driven batched acquisition, and
// a reconfigure operation that applies new calibration parameters across a
// brief quiescent window.
package driver

import "github.com/elata-labs/eegpipe"

// State is a board driver's lifecycle state.
type State int

const (
	StateUninit State = iota
	StateInitialized
	StateRunning
	StateStopped
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// transitions enumerates every legal (from, to) edge in the driver state
// machine; anything else is rejected with ErrCodeInvalidStateTransition.
// StateStopped and StateTerminated both carry a self-edge so a repeated
// Stop()/Terminate() call is a no-op instead of an error.
var transitions = map[State]map[State]bool{
	StateUninit:      {StateInitialized: true},
	StateInitialized: {StateRunning: true, StateTerminated: true},
	StateRunning:     {StateStopped: true},
	StateStopped:     {StateInitialized: true, StateTerminated: true, StateStopped: true},
	StateTerminated:  {StateTerminated: true},
}

func checkTransition(from, to State) error {
	if allowed, ok := transitions[from]; ok && allowed[to] {
		return nil
	}
	return &eegpipe.Error{Op: "driver.transition", Code: eegpipe.ErrCodeInvalidStateTransition,
		Inner: transitionError{from: from, to: to}}
}

type transitionError struct{ from, to State }

func (e transitionError) Error() string {
	return e.from.String() + " -> " + e.to.String() + " is not a legal driver state transition"
}

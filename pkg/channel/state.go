package channel

import (
	"context"

	"github.com/looplab/fsm"
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDegraded     State = "degraded"
)

// Lifecycle events.
const (
	eventDial        = "dial"        // begin opening a device
	eventEstablished = "established" // handshake finished
	eventAbort       = "abort"       // open or handshake failed
	eventDegrade     = "degrade"     // write failed on a live connection
	eventDrop        = "drop"        // port closed
)

// newLifecycle builds the connection state machine. onEnter fires on
// every transition with the old and new states.
func newLifecycle(onEnter func(from, to State)) *fsm.FSM {
	return fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: eventDial, Src: []string{string(StateDisconnected)}, Dst: string(StateConnecting)},
			{Name: eventEstablished, Src: []string{string(StateConnecting)}, Dst: string(StateConnected)},
			{Name: eventAbort, Src: []string{string(StateConnecting)}, Dst: string(StateDisconnected)},
			{Name: eventDegrade, Src: []string{string(StateConnected)}, Dst: string(StateDegraded)},
			{Name: eventDrop, Src: []string{
				string(StateConnecting),
				string(StateConnected),
				string(StateDegraded),
			}, Dst: string(StateDisconnected)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(State(e.Src), State(e.Dst))
			},
		},
	)
}

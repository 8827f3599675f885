// Package panel implements the control-panel core: status polling, UI state
// derivation and guarded command dispatch.
package panel

import "algopilot-panel/internal/models"

// UIState is the panel-local reconciliation of a raw status snapshot into
// one authoritative display/enablement state.
type UIState struct {
	Label       string // RUNNING, PAUSED, STOPPED, EMERGENCY
	Color       string // green, yellow, gray, red
	IsEmergency bool
	IsRunning   bool
	IsPaused    bool
	IsStopped   bool
	DisableAll  bool
}

// UI state labels. LabelUnknown is never produced by Derive; it is the audit
// label for a command dispatched without any status on hand.
const (
	LabelRunning   = "RUNNING"
	LabelPaused    = "PAUSED"
	LabelStopped   = "STOPPED"
	LabelEmergency = "EMERGENCY"
	LabelUnknown   = "UNKNOWN"
)

// Derive maps a raw status to exactly one of the four UI states.
//
// The engine reports its mode through two signals: the authoritative
// algo_state enum and a secondary paused flag. They are reconciled here, in
// one place, with a fixed precedence: EMERGENCY_STOP beats everything,
// STOPPED beats paused, paused beats the RUNNING default. DisableAll is true
// whenever a command is in flight or the engine is in emergency stop.
func Derive(status models.OperationalStatus, commandInFlight bool) UIState {
	st := UIState{}

	switch {
	case status.AlgoState == models.StateEmergencyStop:
		st.Label = LabelEmergency
		st.Color = "red"
		st.IsEmergency = true
	case status.AlgoState == models.StateStopped:
		st.Label = LabelStopped
		st.Color = "gray"
		st.IsStopped = true
	case status.Paused || status.AlgoState == models.StatePaused:
		st.Label = LabelPaused
		st.Color = "yellow"
		st.IsPaused = true
	default:
		st.Label = LabelRunning
		st.Color = "green"
		st.IsRunning = true
	}

	st.DisableAll = commandInFlight || st.IsEmergency
	return st
}

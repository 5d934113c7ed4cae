// Package playback provides the reconciling playback controller: a single
// goroutine that owns the play queue and playback intent, drains a command
// mailbox, drives the zone player, and periodically reconciles its intent
// against what the device actually reports.
package playback

// State represents the controller's playback intent.
type State int

const (
	StateStopped State = iota // Nothing should be playing
	StatePlaying              // A track should be playing
	StatePaused               // Playback held by explicit user pause
	// StateTransitioning marks an in-progress track change. It only exists
	// inside a handler; the loop never parks in it between commands and it
	// is never compared against device reports.
	StateTransitioning
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

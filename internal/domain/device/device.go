// Package device defines the contract to a networked zone player.
package device

import "context"

// State is the transport state a device reports. Reports are advisory: a
// device may be controlled by other actors and may answer with stale or
// contradictory values, so callers treat them as hints, never as truth.
type State int

const (
	StateUnknown State = iota
	StatePlaying
	StatePaused
	StateStopped
	StateTransitioning
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// Device is the control surface of a single addressed zone player. Every
// call may fail transiently; callers bound each call with a context timeout
// and must tolerate failure without corrupting their own state.
type Device interface {
	// PlayURI loads the given stream URI and starts playback.
	PlayURI(ctx context.Context, uri string) error
	// Resume continues playback of whatever the transport currently holds.
	Resume(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	// Previous invokes the device's native previous-track capability.
	Previous(ctx context.Context) error
	// SetVolume sets the master volume, 0-100.
	SetVolume(ctx context.Context, level int) error
	// Volume reads the current master volume.
	Volume(ctx context.Context) (int, error)
	// TransportState reports the device's current transport state.
	TransportState(ctx context.Context) (State, error)
	// CurrentTrackURI reports the URI the transport currently holds, or ""
	// when the device has none to report.
	CurrentTrackURI(ctx context.Context) (string, error)
	// Name identifies the zone for logs and snapshots.
	Name() string
}

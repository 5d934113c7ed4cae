// Package command defines the controller's command vocabulary and mailbox.
package command

import (
	"time"

	"github.com/google/uuid"

	"github.com/sonobox/sonobox/internal/domain/track"
)

// Kind identifies a command variant. The set is closed: the controller
// dispatches over it exhaustively and drops anything it does not know.
type Kind int

const (
	KindUnknown Kind = iota
	KindPlay
	KindPause
	KindStop
	KindNext
	KindPrev
	KindAddTrack
	KindAddTracks
	KindClearQueue
	KindSetVolume
	KindVolumeUp
	KindVolumeDown
	KindToggleRepeat
	KindToggleShuffle
	KindSwitchZone
	KindShutdown

	// KindTrackEnded is synthesized by the controller's reconciliation pass
	// when the device reports natural completion. Producers never submit it.
	KindTrackEnded
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindPlay:
		return "play"
	case KindPause:
		return "pause"
	case KindStop:
		return "stop"
	case KindNext:
		return "next"
	case KindPrev:
		return "prev"
	case KindAddTrack:
		return "add_track"
	case KindAddTracks:
		return "add_tracks"
	case KindClearQueue:
		return "clear_queue"
	case KindSetVolume:
		return "set_volume"
	case KindVolumeUp:
		return "volume_up"
	case KindVolumeDown:
		return "volume_down"
	case KindToggleRepeat:
		return "toggle_repeat"
	case KindToggleShuffle:
		return "toggle_shuffle"
	case KindSwitchZone:
		return "switch_zone"
	case KindShutdown:
		return "shutdown"
	case KindTrackEnded:
		return "track_ended"
	default:
		return "unknown"
	}
}

// Command is a request to the controller. Immutable once enqueued; the
// payload fields used depend on the kind.
type Command struct {
	ID     string
	Kind   Kind
	Tracks []track.Track // AddTrack / AddTracks
	Level  int           // SetVolume
	Zone   string        // SwitchZone
	At     time.Time
}

// New creates a command with no payload.
func New(kind Kind) Command {
	return Command{
		ID:   uuid.New().String(),
		Kind: kind,
		At:   time.Now(),
	}
}

// AddTrack creates a command appending a single track.
func AddTrack(t track.Track) Command {
	cmd := New(KindAddTrack)
	cmd.Tracks = []track.Track{t}
	return cmd
}

// AddTracks creates a command appending tracks in the given order.
func AddTracks(tracks []track.Track) Command {
	cmd := New(KindAddTracks)
	cmd.Tracks = tracks
	return cmd
}

// SetVolume creates a volume command. The controller clamps the level.
func SetVolume(level int) Command {
	cmd := New(KindSetVolume)
	cmd.Level = level
	return cmd
}

// SwitchZone creates a command retargeting the controller at another zone.
func SwitchZone(zone string) Command {
	cmd := New(KindSwitchZone)
	cmd.Zone = zone
	return cmd
}

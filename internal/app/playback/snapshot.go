package playback

import (
	"time"

	"github.com/sonobox/sonobox/internal/domain/track"
)

// Statistics counts controller activity since startup.
type Statistics struct {
	CommandsProcessed int       `json:"commands_processed"`
	CommandErrors     int       `json:"command_errors"`
	TracksPlayed      int       `json:"tracks_played"`
	AutoAdvances      int       `json:"auto_advances"`
	Takeovers         int       `json:"takeovers"`
	StartedAt         time.Time `json:"started_at"`
}

// Snapshot is a point-in-time copy of the controller state, published
// after every loop turn. Readers must treat Tracks as immutable; the
// backing array is shared between snapshot readers.
type Snapshot struct {
	State   State
	Current *track.Track
	Tracks  []track.Track
	Repeat  bool
	Shuffle bool
	Volume  int
	Zone    string
	Stats   Statistics
}

// Depth returns the number of queued tracks, not counting the current one.
func (s Snapshot) Depth() int {
	return len(s.Tracks)
}

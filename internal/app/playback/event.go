package playback

import (
	"github.com/sonobox/sonobox/internal/domain/track"
)

// EventType represents the type of playback event
type EventType int

const (
	// EventTrackChanged is emitted when the current track changes
	EventTrackChanged EventType = iota
	// EventPlaybackState is emitted when intent, repeat or shuffle change
	EventPlaybackState
	// EventQueueChanged is emitted when the queue depth or order changes
	EventQueueChanged
	// EventVolumeChanged is emitted after a volume adjustment
	EventVolumeChanged
)

// String returns the wire name of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventPlaybackState:
		return "playback_state"
	case EventQueueChanged:
		return "queue_changed"
	case EventVolumeChanged:
		return "volume_changed"
	default:
		return "unknown"
	}
}

// Event represents a playback event. Only the fields relevant to the
// event type are populated.
type Event struct {
	Type    EventType
	Track   *track.Track
	State   State
	Repeat  bool
	Shuffle bool
	Depth   int
	Volume  int
}

// TrackChangedPayload is the wire payload for track_changed events.
// Position is always reported from the start of the track.
type TrackChangedPayload struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Position string `json:"position"`
	Duration string `json:"duration"`
	AlbumArt string `json:"album_art"`
}

// PlaybackStatePayload is the wire payload for playback_state events.
type PlaybackStatePayload struct {
	State   string `json:"state"`
	Repeat  bool   `json:"repeat"`
	Shuffle bool   `json:"shuffle"`
}

// QueueChangedPayload is the wire payload for queue_changed events.
type QueueChangedPayload struct {
	Depth int `json:"queuedepth"`
}

// VolumeChangedPayload is the wire payload for volume_changed events.
type VolumeChangedPayload struct {
	Volume int `json:"volume"`
}

// Payload builds the JSON-ready payload for the event. A track_changed
// event with no track reports empty fields, which clients render as an
// idle player.
func (e Event) Payload() any {
	switch e.Type {
	case EventTrackChanged:
		p := TrackChangedPayload{
			Position: "0:00:00",
			Duration: "0:00:00",
		}
		if e.Track != nil {
			p.Title = e.Track.Title
			p.Artist = e.Track.Artist
			p.Album = e.Track.Album
			p.Duration = track.FormatPosition(e.Track.Duration)
			p.AlbumArt = e.Track.AlbumArtURL
		}
		return p
	case EventPlaybackState:
		return PlaybackStatePayload{
			State:   e.State.String(),
			Repeat:  e.Repeat,
			Shuffle: e.Shuffle,
		}
	case EventQueueChanged:
		return QueueChangedPayload{Depth: e.Depth}
	case EventVolumeChanged:
		return VolumeChangedPayload{Volume: e.Volume}
	default:
		return nil
	}
}

// Sink receives playback events for fan-out to clients. Publish must not
// block; implementations buffer or drop.
type Sink interface {
	Publish(e Event)
}

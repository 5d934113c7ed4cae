// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Track represents a playable item in the queue. Tracks have no persistent
// identity; within the queue they are identified by position, on the device
// by URI.
type Track struct {
	Title       string        `json:"title"`
	Artist      string        `json:"artist"`
	Album       string        `json:"album"`
	URI         string        `json:"uri"`       // stream URL handed to the device
	AlbumArtURL string        `json:"album_art"` // empty when no art is available
	Duration    time.Duration `json:"-"`
	Length      string        `json:"length,omitempty"` // human form, e.g. "3:30"
}

// String returns a short human-readable label for logs.
func (t Track) String() string {
	switch {
	case t.Artist != "" && t.Title != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	default:
		return t.URI
	}
}

// ParseLength converts a length string to a duration. Accepts plain seconds
// ("210"), "m:ss" and "h:mm:ss" forms. Negative or unparseable values
// (m3u files use "-1" for unknown) yield zero.
func ParseLength(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if !strings.Contains(s, ":") {
		secs, err := strconv.Atoi(s)
		if err != nil || secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}

// FormatPosition renders a duration as "h:mm:ss", the form playback events
// carry on the wire.
func FormatPosition(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

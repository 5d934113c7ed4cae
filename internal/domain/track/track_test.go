package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLength(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
	}{
		{
			name:     "plain seconds",
			input:    "210",
			expected: 210 * time.Second,
		},
		{
			name:     "minutes and seconds",
			input:    "3:30",
			expected: 3*time.Minute + 30*time.Second,
		},
		{
			name:     "hours minutes seconds",
			input:    "1:02:03",
			expected: time.Hour + 2*time.Minute + 3*time.Second,
		},
		{
			name:     "unknown length marker",
			input:    "-1",
			expected: 0,
		},
		{
			name:     "empty string",
			input:    "",
			expected: 0,
		},
		{
			name:     "surrounding whitespace",
			input:    " 90 ",
			expected: 90 * time.Second,
		},
		{
			name:     "garbage",
			input:    "abc",
			expected: 0,
		},
		{
			name:     "too many segments",
			input:    "1:2:3:4",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLength(tt.input))
		})
	}
}

func TestFormatPosition(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Duration
		expected string
	}{
		{
			name:     "zero",
			input:    0,
			expected: "0:00:00",
		},
		{
			name:     "under an hour",
			input:    3*time.Minute + 30*time.Second,
			expected: "0:03:30",
		},
		{
			name:     "over an hour",
			input:    time.Hour + 2*time.Minute + 3*time.Second,
			expected: "1:02:03",
		},
		{
			name:     "negative clamps to zero",
			input:    -5 * time.Second,
			expected: "0:00:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatPosition(tt.input))
		})
	}
}

func TestTrack_String(t *testing.T) {
	tests := []struct {
		name     string
		track    Track
		expected string
	}{
		{
			name:     "artist and title",
			track:    Track{Title: "Song", Artist: "Band"},
			expected: "Band - Song",
		},
		{
			name:     "title only",
			track:    Track{Title: "Song"},
			expected: "Song",
		},
		{
			name:     "uri fallback",
			track:    Track{URI: "http://host/music/a.mp3"},
			expected: "http://host/music/a.mp3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.track.String())
		})
	}
}

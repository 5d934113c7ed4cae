package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonobox/sonobox/internal/app/command"
	"github.com/sonobox/sonobox/internal/app/notification"
	"github.com/sonobox/sonobox/internal/app/playback"
	"github.com/sonobox/sonobox/internal/domain/playlist"
	"github.com/sonobox/sonobox/internal/domain/track"
	"github.com/sonobox/sonobox/internal/infra/library"
	"github.com/sonobox/sonobox/internal/infra/sonos"
)

const testMediaBase = "http://127.0.0.1:54000"

const testDB = `{
  "100": {
    "title": "Long Play",
    "thumbfile": "/media/album-art/100.png",
    "artist": "Alpha",
    "added": 1700000000.0,
    "tracks": {
      "1": {"song": "One", "artist": "Alpha", "key": "k1", "path": ["/media/Music/One.mp3"]},
      "2": {"song": "Two", "artist": "Alpha", "key": "k2", "path": ["/media/Music/Two.mp3"]}
    }
  }
}`

const testM3U = `#EXTM3U
#EXTINF:185,Alpha - Opening
/media/Music/Alpha/First Album/01 Opening.mp3
#EXTINF:200,Beta - Solo
/media/Music/Beta/Second Album/01 Solo.mp3
`

type fakePlayer struct {
	mu        sync.Mutex
	submitted []command.Command
	submitErr error
	snap      playback.Snapshot
	stats     command.QueueStats
}

func (f *fakePlayer) Submit(cmd command.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, cmd)
	return nil
}

func (f *fakePlayer) Snapshot() playback.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakePlayer) MailboxStats() command.QueueStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *fakePlayer) last(t *testing.T) command.Command {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.submitted)
	return f.submitted[len(f.submitted)-1]
}

type testServer struct {
	handler http.Handler
	player  *fakePlayer
	events  *notification.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db.json"), []byte(testDB), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "party.m3u"), []byte(testM3U), 0o644))

	lib := library.New(filepath.Join(dir, "db.json"), testMediaBase)
	require.NoError(t, lib.Load())

	events := notification.NewManager(notification.Config{})
	t.Cleanup(events.Close)

	player := &fakePlayer{}
	srv := NewServer(Config{
		Player:    player,
		Events:    events,
		Library:   lib,
		Playlists: playlist.NewStore(dir, testMediaBase),
		Discover: func(ctx context.Context, timeout time.Duration) ([]sonos.Zone, error) {
			return []sonos.Zone{{Name: "Den", Host: "192.168.1.20", Model: "Sonos One"}}, nil
		},
		MediaBase: testMediaBase,
	})
	return &testServer{handler: srv.Router(), player: player, events: events}
}

func (ts *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestServer_CommandEndpoints(t *testing.T) {
	tests := []struct {
		path string
		kind command.Kind
	}{
		{"/play", command.KindPlay},
		{"/pause", command.KindPause},
		{"/stop", command.KindStop},
		{"/next", command.KindNext},
		{"/prev", command.KindPrev},
		{"/queue/clear", command.KindClearQueue},
		{"/volumeup", command.KindVolumeUp},
		{"/volumedown", command.KindVolumeDown},
		{"/repeat", command.KindToggleRepeat},
		{"/shuffle", command.KindToggleShuffle},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ts := newTestServer(t)

			w := ts.get(t, tt.path)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.kind, ts.player.last(t).Kind)
			assert.Equal(t, "ok", decode[statusResponse](t, w).Status)
		})
	}
}

func TestServer_SubmitQueueFull(t *testing.T) {
	ts := newTestServer(t)
	ts.player.submitErr = command.ErrQueueFull

	w := ts.get(t, "/play")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_State(t *testing.T) {
	ts := newTestServer(t)
	ts.player.snap = playback.Snapshot{
		State:   playback.StatePlaying,
		Repeat:  true,
		Volume:  40,
		Zone:    "Den",
		Tracks:  []track.Track{{URI: "http://x/a.mp3"}},
		Current: &track.Track{Title: "One"},
	}

	w := ts.get(t, "/state")

	require.Equal(t, http.StatusOK, w.Code)
	got := decode[stateResponse](t, w)
	assert.Equal(t, "playing", got.State)
	assert.True(t, got.Repeat)
	assert.False(t, got.Shuffle)
	assert.Equal(t, 40, got.Volume)
	assert.Equal(t, "Den", got.Zone)
	assert.Equal(t, 1, got.Depth)
}

func TestServer_Current(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/current")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "{}", w.Body.String())

	ts.player.snap.Current = &track.Track{Title: "One", Artist: "Alpha", URI: "http://x/a.mp3"}
	w = ts.get(t, "/current")
	got := decode[track.Track](t, w)
	assert.Equal(t, "One", got.Title)
	assert.Equal(t, "Alpha", got.Artist)
}

func TestServer_Queue(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/queue")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	ts.player.snap.Tracks = []track.Track{{Title: "One"}, {Title: "Two"}}
	w = ts.get(t, "/queue")
	assert.Len(t, decode[[]track.Track](t, w), 2)

	w = ts.get(t, "/queuedepth")
	assert.Equal(t, 2, decode[playback.QueueChangedPayload](t, w).Depth)
}

func TestServer_Volume(t *testing.T) {
	ts := newTestServer(t)
	ts.player.snap.Volume = 33

	w := ts.get(t, "/volume")
	assert.Equal(t, 33, decode[playback.VolumeChangedPayload](t, w).Volume)

	w = ts.get(t, "/volume/42")
	require.Equal(t, http.StatusOK, w.Code)
	cmd := ts.player.last(t)
	assert.Equal(t, command.KindSetVolume, cmd.Kind)
	assert.Equal(t, 42, cmd.Level)

	w = ts.get(t, "/volume/loud")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_SetZone(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/setzone/Den")

	require.Equal(t, http.StatusOK, w.Code)
	cmd := ts.player.last(t)
	assert.Equal(t, command.KindSwitchZone, cmd.Kind)
	assert.Equal(t, "Den", cmd.Zone)
}

func TestServer_Speakers(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/speakers")

	require.Equal(t, http.StatusOK, w.Code)
	zones := decode[[]sonos.Zone](t, w)
	require.Len(t, zones, 1)
	assert.Equal(t, "Den", zones[0].Name)
}

func TestServer_Stats(t *testing.T) {
	ts := newTestServer(t)
	ts.player.snap.Stats = playback.Statistics{TracksPlayed: 7}
	ts.player.stats = command.QueueStats{Enqueued: 12}

	w := ts.get(t, "/stats")

	require.Equal(t, http.StatusOK, w.Code)
	got := decode[statsResponse](t, w)
	assert.Equal(t, 7, got.Controller.TracksPlayed)
	assert.Equal(t, uint64(12), got.Mailbox.Enqueued)
	assert.Equal(t, 1, got.Albums)
	assert.Equal(t, 2, got.Tracks)
	assert.Zero(t, got.Subscribers)
}

package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonobox/sonobox/internal/app/playback"
	"github.com/sonobox/sonobox/internal/domain/track"
)

func recv(t *testing.T, ch <-chan []byte) Message {
	t.Helper()
	select {
	case data := <-ch:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return Message{}
	}
}

func TestManager_PublishFanout(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	_, ch1 := m.Subscribe()
	_, ch2 := m.Subscribe()
	require.Equal(t, 2, m.SubscriberCount())

	m.Publish(playback.Event{Type: playback.EventVolumeChanged, Volume: 40})

	for _, ch := range []<-chan []byte{ch1, ch2} {
		msg := recv(t, ch)
		assert.Equal(t, uint64(1), msg.Seq)
		assert.Equal(t, "volume_changed", msg.Event)
		payload, ok := msg.Payload.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(40), payload["volume"])
	}
}

func TestManager_SequenceIncrements(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	_, ch := m.Subscribe()
	for i := 0; i < 3; i++ {
		m.Publish(playback.Event{Type: playback.EventQueueChanged, Depth: i})
	}

	for want := uint64(1); want <= 3; want++ {
		assert.Equal(t, want, recv(t, ch).Seq)
	}
}

func TestManager_TrackChangedPayload(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	_, ch := m.Subscribe()
	m.Publish(playback.Event{
		Type: playback.EventTrackChanged,
		Track: &track.Track{
			Title:    "Harvest Moon",
			Artist:   "Neil Young",
			Duration: 3*time.Minute + 5*time.Second,
		},
	})

	msg := recv(t, ch)
	assert.Equal(t, "track_changed", msg.Event)
	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Harvest Moon", payload["title"])
	assert.Equal(t, "Neil Young", payload["artist"])
	assert.Equal(t, "0:00:00", payload["position"])
	assert.Equal(t, "0:03:05", payload["duration"])
}

func TestManager_SlowSubscriberDrops(t *testing.T) {
	m := NewManager(Config{BufferSize: 1})
	defer m.Close()

	_, ch := m.Subscribe()
	for i := 0; i < 3; i++ {
		m.Publish(playback.Event{Type: playback.EventQueueChanged, Depth: i})
	}

	assert.Len(t, ch, 1)
	assert.Equal(t, uint64(1), recv(t, ch).Seq)
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	id, ch := m.Subscribe()
	m.Unsubscribe(id)
	require.Equal(t, 0, m.SubscriberCount())

	m.Publish(playback.Event{Type: playback.EventVolumeChanged, Volume: 10})
	assert.Len(t, ch, 0)
}

func TestManager_CloseEndsSubscribers(t *testing.T) {
	m := NewManager(Config{})

	_, ch := m.Subscribe()
	m.Close()

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing or unsubscribing after close must not panic.
	m.Publish(playback.Event{Type: playback.EventVolumeChanged})
	m.Unsubscribe("gone")
	m.Close()
}

func TestManager_RedisMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "sonobox:events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	m := NewManager(Config{Redis: client, Channel: "sonobox:events"})
	defer m.Close()

	m.Publish(playback.Event{Type: playback.EventQueueChanged, Depth: 7})

	select {
	case msg := <-sub.Channel():
		var got Message
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "queue_changed", got.Event)
		payload, ok := got.Payload.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(7), payload["queuedepth"])
	case <-time.After(2 * time.Second):
		t.Fatal("no redis message")
	}
}

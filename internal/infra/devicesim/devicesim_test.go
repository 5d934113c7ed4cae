package devicesim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonobox/sonobox/internal/domain/device"
)

func TestDevice_Transport(t *testing.T) {
	ctx := context.Background()
	d := New(Config{Name: "Test Room", Volume: 30})

	st, err := d.TransportState(ctx)
	require.NoError(t, err)
	assert.Equal(t, device.StateStopped, st)

	require.Error(t, d.Resume(ctx))
	require.Error(t, d.PlayURI(ctx, ""))

	require.NoError(t, d.PlayURI(ctx, "http://m/a.mp3"))
	st, _ = d.TransportState(ctx)
	assert.Equal(t, device.StatePlaying, st)
	uri, _ := d.CurrentTrackURI(ctx)
	assert.Equal(t, "http://m/a.mp3", uri)

	require.NoError(t, d.Pause(ctx))
	st, _ = d.TransportState(ctx)
	assert.Equal(t, device.StatePaused, st)

	require.NoError(t, d.Resume(ctx))
	st, _ = d.TransportState(ctx)
	assert.Equal(t, device.StatePlaying, st)

	require.NoError(t, d.Stop(ctx))
	st, _ = d.TransportState(ctx)
	assert.Equal(t, device.StateStopped, st)

	// The loaded track survives a stop.
	uri, _ = d.CurrentTrackURI(ctx)
	assert.Equal(t, "http://m/a.mp3", uri)
}

func TestDevice_Volume(t *testing.T) {
	ctx := context.Background()
	d := New(Config{Volume: 30})

	vol, err := d.Volume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, vol)

	require.NoError(t, d.SetVolume(ctx, 55))
	vol, _ = d.Volume(ctx)
	assert.Equal(t, 55, vol)

	require.Error(t, d.SetVolume(ctx, 101))
	require.Error(t, d.SetVolume(ctx, -1))
}

func TestDevice_AutoFinish(t *testing.T) {
	ctx := context.Background()
	d := New(Config{TrackLength: 10 * time.Millisecond})

	require.NoError(t, d.PlayURI(ctx, "http://m/a.mp3"))
	time.Sleep(30 * time.Millisecond)

	st, err := d.TransportState(ctx)
	require.NoError(t, err)
	assert.Equal(t, device.StateStopped, st)
	uri, _ := d.CurrentTrackURI(ctx)
	assert.Equal(t, "http://m/a.mp3", uri)
}

func TestDevice_Seize(t *testing.T) {
	ctx := context.Background()
	d := New(Config{})

	require.NoError(t, d.PlayURI(ctx, "http://m/a.mp3"))
	d.Seize("spotify:track:123")

	st, _ := d.TransportState(ctx)
	assert.Equal(t, device.StatePlaying, st)
	uri, _ := d.CurrentTrackURI(ctx)
	assert.Equal(t, "spotify:track:123", uri)
}

func TestDevice_Previous(t *testing.T) {
	ctx := context.Background()
	d := New(Config{})

	require.Error(t, d.Previous(ctx))

	require.NoError(t, d.PlayURI(ctx, "http://m/a.mp3"))
	require.NoError(t, d.Pause(ctx))
	require.NoError(t, d.Previous(ctx))

	st, _ := d.TransportState(ctx)
	assert.Equal(t, device.StatePlaying, st)
}

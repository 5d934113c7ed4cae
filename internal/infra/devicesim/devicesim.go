// Package devicesim provides an in-memory player for development and
// tests. It mimics the transport surface of a real zone player,
// including tracks that finish on their own.
package devicesim

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/sonobox/sonobox/internal/domain/device"
)

// Config represents simulator configuration.
type Config struct {
	// Name is the simulated zone name.
	Name string
	// TrackLength ends a playing track this long after it starts. Zero
	// disables auto-finish.
	TrackLength time.Duration
	// Volume is the initial volume.
	Volume int
}

// Device is a simulated player. Auto-finish is evaluated lazily on
// reads, so the simulator needs no background goroutine.
type Device struct {
	mu        sync.Mutex
	name      string
	state     device.State
	uri       string
	volume    int
	length    time.Duration
	startedAt time.Time
}

// New creates a simulated player.
func New(cfg Config) *Device {
	name := cfg.Name
	if name == "" {
		name = "Simulator"
	}
	return &Device{
		name:   name,
		state:  device.StateStopped,
		volume: cfg.Volume,
		length: cfg.TrackLength,
	}
}

// Name returns the simulated zone name.
func (d *Device) Name() string {
	return d.name
}

func (d *Device) PlayURI(_ context.Context, uri string) error {
	if uri == "" {
		return errors.New("uri is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uri = uri
	d.state = device.StatePlaying
	d.startedAt = time.Now()
	return nil
}

func (d *Device) Resume(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uri == "" {
		return errors.New("nothing loaded on transport")
	}
	d.state = device.StatePlaying
	return nil
}

func (d *Device) Pause(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == device.StatePlaying {
		d.state = device.StatePaused
	}
	return nil
}

func (d *Device) Stop(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = device.StateStopped
	return nil
}

// Previous restarts the loaded track, which is what a real player does
// for a transport holding a single URI.
func (d *Device) Previous(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uri == "" {
		return errors.New("nothing loaded on transport")
	}
	d.startedAt = time.Now()
	d.state = device.StatePlaying
	return nil
}

func (d *Device) SetVolume(_ context.Context, level int) error {
	if level < 0 || level > 100 {
		return errors.Newf("volume %d out of range", level)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = level
	return nil
}

func (d *Device) Volume(_ context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume, nil
}

func (d *Device) TransportState(_ context.Context) (device.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finishIfDue()
	return d.state, nil
}

func (d *Device) CurrentTrackURI(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finishIfDue()
	return d.uri, nil
}

// finishIfDue moves a playing track to stopped once its length has
// passed. Callers must hold the lock.
func (d *Device) finishIfDue() {
	if d.state != device.StatePlaying || d.length <= 0 {
		return
	}
	if time.Since(d.startedAt) >= d.length {
		d.state = device.StateStopped
	}
}

// Seize simulates an external controller loading and playing its own
// content on the transport.
func (d *Device) Seize(uri string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uri = uri
	d.state = device.StatePlaying
	d.startedAt = time.Now()
}

// Finish ends the playing track immediately.
func (d *Device) Finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == device.StatePlaying {
		d.state = device.StateStopped
	}
}

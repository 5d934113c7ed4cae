package playback

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/sonobox/sonobox/internal/app/command"
	"github.com/sonobox/sonobox/internal/domain/device"
	"github.com/sonobox/sonobox/internal/domain/track"
)

var (
	// ErrUnknownCommand is returned for command kinds the controller does
	// not recognize.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNoTracks is returned when an add command carries no playable tracks.
	ErrNoTracks = errors.New("no playable tracks")

	// ErrZoneSwitching is returned when a zone switch is requested but no
	// device factory was configured.
	ErrZoneSwitching = errors.New("zone switching not configured")
)

// DeviceFactory builds a player for the named zone. Used to honor zone
// switch commands without restarting the controller.
type DeviceFactory func(zone string) (device.Device, error)

const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultDequeueTimeout = 100 * time.Millisecond
	defaultDeviceTimeout  = 2 * time.Second
)

// Config holds the controller configuration.
type Config struct {
	// PollInterval bounds how often the reconciliation pass runs.
	PollInterval time.Duration
	// DequeueTimeout is how long a loop turn waits for a command before
	// falling through to reconciliation.
	DequeueTimeout time.Duration
	// DeviceTimeout bounds every single device call.
	DeviceTimeout time.Duration
	// Repeat re-appends each started track to the tail of the queue.
	Repeat bool
	// Shuffle randomizes incoming batches and the queue remainder.
	Shuffle bool
	// NewDevice enables zone switching when set.
	NewDevice DeviceFactory
}

func (c *Config) normalize() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.DequeueTimeout <= 0 {
		c.DequeueTimeout = defaultDequeueTimeout
	}
	if c.DeviceTimeout <= 0 {
		c.DeviceTimeout = defaultDeviceTimeout
	}
}

// Controller owns the play queue and playback intent. All state below
// the snapshot lock is touched only by the run goroutine.
type Controller struct {
	cfg     Config
	mailbox *command.Queue
	dev     device.Device
	sink    Sink

	queue   []track.Track
	current *track.Track
	state   State
	repeat  bool
	shuffle bool
	volume  int

	lastReconcile time.Time
	endPending    bool
	stats         Statistics

	snapMu sync.RWMutex
	snap   Snapshot

	done chan struct{}
}

// New creates a playback controller for the given device. The mailbox is
// shared with command producers; the sink receives every emitted event
// and may be nil.
func New(cfg Config, dev device.Device, mailbox *command.Queue, sink Sink) *Controller {
	cfg.normalize()
	c := &Controller{
		cfg:     cfg,
		mailbox: mailbox,
		dev:     dev,
		sink:    sink,
		queue:   make([]track.Track, 0),
		state:   StateStopped,
		repeat:  cfg.Repeat,
		shuffle: cfg.Shuffle,
		done:    make(chan struct{}),
	}
	c.stats.StartedAt = time.Now()
	c.publishSnapshot()
	return c
}

// Start launches the processing loop.
func (c *Controller) Start() {
	go c.run()
}

// Submit queues a command for processing. It never blocks; a full
// mailbox rejects the command with command.ErrQueueFull.
func (c *Controller) Submit(cmd command.Command) error {
	return c.mailbox.Enqueue(cmd)
}

// Snapshot returns the most recently published state copy.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// MailboxStats reports the command queue counters.
func (c *Controller) MailboxStats() command.QueueStats {
	return c.mailbox.Stats()
}

// Shutdown asks the loop to stop and waits for it to drain, or for ctx.
func (c *Controller) Shutdown(ctx context.Context) error {
	if err := c.mailbox.Enqueue(command.New(command.KindShutdown)); err != nil {
		return errors.Wrap(err, "failed to request shutdown")
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run() {
	defer close(c.done)

	zlog.Info().Msgf("playback: controller started: zone=%s poll=%s", c.dev.Name(), c.cfg.PollInterval)
	c.seedVolume()
	c.publishSnapshot()

	for {
		cmd, ok := c.mailbox.Dequeue(c.cfg.DequeueTimeout)
		if ok {
			if cmd.Kind == command.KindShutdown {
				c.mailbox.MarkProcessed()
				c.publishSnapshot()
				zlog.Info().Msg("playback: controller stopped")
				return
			}
			c.dispatch(cmd)
		}
		c.maybeReconcile()
		c.publishSnapshot()
	}
}

// dispatch applies one command and settles its accounting. Handler
// errors are logged and absorbed here; they never stop the loop.
func (c *Controller) dispatch(cmd command.Command) {
	zlog.Debug().Msgf("playback: command received: kind=%s id=%s", cmd.Kind, cmd.ID)
	c.stats.CommandsProcessed++
	if err := c.apply(cmd); err != nil {
		c.stats.CommandErrors++
		c.mailbox.MarkError()
		zlog.Warn().Err(err).Msgf("playback: command failed: kind=%s", cmd.Kind)
		return
	}
	c.mailbox.MarkProcessed()
}

func (c *Controller) apply(cmd command.Command) error {
	switch cmd.Kind {
	case command.KindPlay:
		return c.handlePlay()
	case command.KindPause:
		return c.handlePause()
	case command.KindStop:
		return c.handleStop()
	case command.KindNext:
		return c.advance(false)
	case command.KindPrev:
		return c.handlePrev()
	case command.KindTrackEnded:
		return c.handleTrackEnded(cmd)
	case command.KindAddTrack, command.KindAddTracks:
		return c.handleAddTracks(cmd)
	case command.KindClearQueue:
		return c.handleClearQueue()
	case command.KindSetVolume:
		return c.handleSetVolume(cmd.Level)
	case command.KindVolumeUp:
		return c.handleVolumeStep(1)
	case command.KindVolumeDown:
		return c.handleVolumeStep(-1)
	case command.KindToggleRepeat:
		return c.handleToggleRepeat()
	case command.KindToggleShuffle:
		return c.handleToggleShuffle()
	case command.KindSwitchZone:
		return c.handleSwitchZone(cmd.Zone)
	default:
		return errors.Wrapf(ErrUnknownCommand, "kind %d", int(cmd.Kind))
	}
}

// handlePlay resumes the current track if one is held, otherwise starts
// the queue head. Playing already means there is nothing to do.
func (c *Controller) handlePlay() error {
	switch {
	case c.state == StatePlaying:
		return nil
	case c.current != nil:
		if err := c.withDevice(c.dev.Resume); err != nil {
			return errors.Wrap(err, "failed to resume")
		}
		c.state = StatePlaying
		c.emitPlaybackState()
		return nil
	case len(c.queue) > 0:
		if err := c.advance(false); err != nil {
			return err
		}
		c.emitPlaybackState()
		return nil
	default:
		zlog.Debug().Msg("playback: play with empty queue, nothing to do")
		return nil
	}
}

func (c *Controller) handlePause() error {
	if c.state != StatePlaying {
		return nil
	}
	if err := c.withDevice(c.dev.Pause); err != nil {
		return errors.Wrap(err, "failed to pause")
	}
	c.state = StatePaused
	c.emitPlaybackState()
	return nil
}

// handleStop is a hard override: intent becomes Stopped and stays there
// until a new play-shaped command arrives. The current track is kept so
// Play can resume it.
func (c *Controller) handleStop() error {
	if err := c.withDevice(c.dev.Stop); err != nil {
		return errors.Wrap(err, "failed to stop")
	}
	c.state = StateStopped
	c.emitPlaybackState()
	return nil
}

// handlePrev forwards to the device's native previous-track behavior:
// restart near the start of the track, jump back otherwise.
func (c *Controller) handlePrev() error {
	if err := c.withDevice(c.dev.Previous); err != nil {
		return errors.Wrap(err, "failed to skip back")
	}
	return nil
}

// handleTrackEnded processes a reconciliation-synthesized advance. A
// Stop or Pause applied since the synthesis cancels it, as does a track
// change that makes the report stale.
func (c *Controller) handleTrackEnded(cmd command.Command) error {
	c.endPending = false
	if c.state != StatePlaying {
		zlog.Debug().Msgf("playback: dropping track end, state=%s", c.state)
		return nil
	}
	if len(cmd.Tracks) == 1 && c.current != nil && cmd.Tracks[0].URI != c.current.URI {
		zlog.Debug().Msgf("playback: dropping stale track end for %s", cmd.Tracks[0].URI)
		return nil
	}
	return c.advance(true)
}

// advance starts the queue head on the device and only then mutates the
// queue, so a failed device call leaves the queue intact. auto marks a
// natural-end advance rather than a user skip.
func (c *Controller) advance(auto bool) error {
	if len(c.queue) == 0 {
		c.current = nil
		if c.state != StateStopped {
			c.state = StateStopped
			c.emitPlaybackState()
		}
		c.emitTrackChanged()
		return nil
	}

	next := c.queue[0]
	prev := c.state
	c.state = StateTransitioning
	if err := c.withDevice(c.dev.Stop); err != nil {
		zlog.Debug().Err(err).Msg("playback: pre-advance stop failed")
	}
	if err := c.withDevice(func(ctx context.Context) error {
		return c.dev.PlayURI(ctx, next.URI)
	}); err != nil {
		c.state = prev
		return errors.Wrapf(err, "failed to start %s", next.URI)
	}

	c.queue = c.queue[1:]
	if c.repeat {
		c.queue = append(c.queue, next)
	}
	c.current = &next
	c.state = StatePlaying
	c.stats.TracksPlayed++
	if auto {
		c.stats.AutoAdvances++
	}
	zlog.Info().Msgf("playback: now playing: %s", next)
	c.emitTrackChanged()
	c.emitQueueChanged()
	return nil
}

// handleAddTracks appends a batch to the queue. A batch added with
// shuffle on is permuted before the append so already-queued tracks keep
// their order. Starting from an empty queue in the stopped state kicks
// playback off immediately.
func (c *Controller) handleAddTracks(cmd command.Command) error {
	incoming := make([]track.Track, 0, len(cmd.Tracks))
	for _, t := range cmd.Tracks {
		if t.URI == "" {
			zlog.Warn().Msgf("playback: dropping track without uri: %q", t.Title)
			continue
		}
		incoming = append(incoming, t)
	}
	if len(incoming) == 0 {
		return ErrNoTracks
	}
	if c.shuffle {
		rand.Shuffle(len(incoming), func(i, j int) {
			incoming[i], incoming[j] = incoming[j], incoming[i]
		})
	}

	autostart := len(c.queue) == 0 && c.state == StateStopped
	c.queue = append(c.queue, incoming...)
	zlog.Info().Msgf("playback: queued %d tracks, depth now %d", len(incoming), len(c.queue))

	if autostart {
		if err := c.advance(false); err != nil {
			c.emitQueueChanged()
			return err
		}
		return nil
	}
	c.emitQueueChanged()
	return nil
}

func (c *Controller) handleClearQueue() error {
	removed := len(c.queue)
	c.queue = make([]track.Track, 0)
	zlog.Info().Msgf("playback: queue cleared, %d tracks dropped", removed)
	c.emitQueueChanged()
	return nil
}

func (c *Controller) handleSetVolume(level int) error {
	level = clampVolume(level)
	if err := c.withDevice(func(ctx context.Context) error {
		return c.dev.SetVolume(ctx, level)
	}); err != nil {
		return errors.Wrapf(err, "failed to set volume %d", level)
	}
	c.volume = level
	c.emitVolumeChanged()
	return nil
}

// handleVolumeStep nudges the device volume relative to what the device
// reports right now, not the cached value, so external adjustments are
// respected.
func (c *Controller) handleVolumeStep(delta int) error {
	var cur int
	if err := c.withDevice(func(ctx context.Context) error {
		var err error
		cur, err = c.dev.Volume(ctx)
		return err
	}); err != nil {
		return errors.Wrap(err, "failed to read volume")
	}
	level := clampVolume(cur + delta)
	if err := c.withDevice(func(ctx context.Context) error {
		return c.dev.SetVolume(ctx, level)
	}); err != nil {
		return errors.Wrapf(err, "failed to set volume %d", level)
	}
	c.volume = level
	c.emitVolumeChanged()
	return nil
}

func (c *Controller) handleToggleRepeat() error {
	c.repeat = !c.repeat
	zlog.Info().Msgf("playback: repeat %v", c.repeat)
	c.emitPlaybackState()
	return nil
}

// handleToggleShuffle permutes the queued remainder once when turning
// shuffle on. Turning it off leaves the current order alone.
func (c *Controller) handleToggleShuffle() error {
	c.shuffle = !c.shuffle
	zlog.Info().Msgf("playback: shuffle %v", c.shuffle)
	if c.shuffle && len(c.queue) > 1 {
		rand.Shuffle(len(c.queue), func(i, j int) {
			c.queue[i], c.queue[j] = c.queue[j], c.queue[i]
		})
		c.emitQueueChanged()
	}
	c.emitPlaybackState()
	return nil
}

func (c *Controller) handleSwitchZone(zone string) error {
	if zone == "" {
		return errors.New("zone name required")
	}
	if c.cfg.NewDevice == nil {
		return ErrZoneSwitching
	}
	dev, err := c.cfg.NewDevice(zone)
	if err != nil {
		return errors.Wrapf(err, "failed to attach zone %s", zone)
	}
	c.dev = dev
	c.seedVolume()
	zlog.Info().Msgf("playback: switched zone: %s", dev.Name())
	return nil
}

// withDevice runs one device call under its own timeout.
func (c *Controller) withDevice(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DeviceTimeout)
	defer cancel()
	return fn(ctx)
}

// seedVolume primes the cached volume from the device. Best effort: a
// comm failure leaves the previous value.
func (c *Controller) seedVolume() {
	var vol int
	err := c.withDevice(func(ctx context.Context) error {
		var err error
		vol, err = c.dev.Volume(ctx)
		return err
	})
	if err != nil {
		zlog.Debug().Err(err).Msg("playback: volume read failed")
		return
	}
	c.volume = vol
}

func (c *Controller) publishSnapshot() {
	tracks := make([]track.Track, len(c.queue))
	copy(tracks, c.queue)
	var cur *track.Track
	if c.current != nil {
		t := *c.current
		cur = &t
	}
	s := Snapshot{
		State:   c.state,
		Current: cur,
		Tracks:  tracks,
		Repeat:  c.repeat,
		Shuffle: c.shuffle,
		Volume:  c.volume,
		Zone:    c.dev.Name(),
		Stats:   c.stats,
	}
	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
}

func (c *Controller) emit(e Event) {
	if c.sink == nil {
		return
	}
	c.sink.Publish(e)
}

func (c *Controller) emitTrackChanged() {
	e := Event{Type: EventTrackChanged}
	if c.current != nil {
		t := *c.current
		e.Track = &t
	}
	c.emit(e)
}

func (c *Controller) emitPlaybackState() {
	c.emit(Event{
		Type:    EventPlaybackState,
		State:   c.state,
		Repeat:  c.repeat,
		Shuffle: c.shuffle,
	})
}

func (c *Controller) emitQueueChanged() {
	c.emit(Event{Type: EventQueueChanged, Depth: len(c.queue)})
}

func (c *Controller) emitVolumeChanged() {
	c.emit(Event{Type: EventVolumeChanged, Volume: c.volume})
}

func clampVolume(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}

package playback

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/sonobox/sonobox/internal/app/command"
	"github.com/sonobox/sonobox/internal/domain/device"
	"github.com/sonobox/sonobox/internal/domain/track"
)

// maybeReconcile rate-limits the reconciliation pass to the configured
// poll interval.
func (c *Controller) maybeReconcile() {
	if time.Since(c.lastReconcile) < c.cfg.PollInterval {
		return
	}
	c.lastReconcile = time.Now()
	c.reconcile()
}

// reconcile compares playback intent against the device report and fixes
// drift. Intent is authoritative: the report only ever triggers commands
// or device calls, never a direct queue edit. Anything but Playing means
// the device is free to do as it pleases.
func (c *Controller) reconcile() {
	if c.state != StatePlaying {
		return
	}
	if c.current == nil {
		zlog.Panic().Msg("playback: playing with no current track")
	}

	var ts device.State
	err := c.withDevice(func(ctx context.Context) error {
		var err error
		ts, err = c.dev.TransportState(ctx)
		return err
	})
	if err != nil {
		zlog.Debug().Err(err).Msg("playback: transport state read failed, skipping cycle")
		return
	}

	var uri string
	err = c.withDevice(func(ctx context.Context) error {
		var err error
		uri, err = c.dev.CurrentTrackURI(ctx)
		return err
	})
	if err != nil {
		zlog.Debug().Err(err).Msg("playback: track identity read failed, skipping cycle")
		return
	}

	switch ts {
	case device.StateTransitioning, device.StateUnknown:
		// Unsettled report. Wait for the next cycle rather than react
		// to a state the device is still moving through.
		return
	case device.StatePlaying:
		if uri == "" || uri == c.current.URI {
			return
		}
		c.takeover(uri)
	case device.StatePaused, device.StateStopped:
		if uri != "" && uri != c.current.URI {
			c.takeover(uri)
			return
		}
		c.synthesizeTrackEnded()
	}
}

// takeover reclaims the device from a foreign source by stopping it and
// re-issuing the controller's own current track. Failures are retried on
// the next cycle.
func (c *Controller) takeover(foreign string) {
	zlog.Info().Msgf("playback: reclaiming device from foreign source: %s", foreign)
	if err := c.withDevice(c.dev.Stop); err != nil {
		zlog.Debug().Err(err).Msg("playback: takeover stop failed")
		return
	}
	if err := c.withDevice(func(ctx context.Context) error {
		return c.dev.PlayURI(ctx, c.current.URI)
	}); err != nil {
		zlog.Warn().Err(err).Msg("playback: takeover replay failed")
		return
	}
	c.stats.Takeovers++
	c.emitPlaybackState()
}

// synthesizeTrackEnded turns an observed natural completion into a
// regular advance command so it flows through the same path as a user
// skip. The ended track rides along so the handler can discard the
// advance if the current track changed in the meantime. At most one
// synthesized advance is in flight at a time.
func (c *Controller) synthesizeTrackEnded() {
	if c.endPending {
		return
	}
	zlog.Debug().Msgf("playback: track ended on device: %s", *c.current)
	cmd := command.New(command.KindTrackEnded)
	cmd.Tracks = []track.Track{*c.current}
	if err := c.mailbox.Enqueue(cmd); err != nil {
		zlog.Warn().Err(err).Msg("playback: could not queue track end")
		return
	}
	c.endPending = true
}

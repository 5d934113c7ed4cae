package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/sonobox/sonobox/internal/domain/device"
	"github.com/sonobox/sonobox/internal/infra/config"
	"github.com/sonobox/sonobox/internal/infra/devicesim"
	"github.com/sonobox/sonobox/internal/infra/sonos"
)

// sonosSettings are the settings for a sonos device entry.
type sonosSettings struct {
	Zone              string `mapstructure:"zone"`
	Host              string `mapstructure:"host"`
	DiscoverTimeoutMs int    `mapstructure:"discover_timeout_ms" default:"2000" validate:"gte=100"`
}

func (s sonosSettings) discoverTimeout() time.Duration {
	return time.Duration(s.DiscoverTimeoutMs) * time.Millisecond
}

// simSettings are the settings for a sim device entry.
type simSettings struct {
	Zone          string `mapstructure:"zone" default:"Simulator"`
	TrackLengthMs int    `mapstructure:"track_length_ms" validate:"gte=0"`
	Volume        int    `mapstructure:"volume" default:"25" validate:"gte=0,lte=100"`
}

// NewDeviceFromConfig builds the configured player device plus a factory
// that attaches to a different zone of the same device type, used to
// honor zone switch commands.
func NewDeviceFromConfig(cfg *config.Config) (device.Device, DeviceFactory, error) {
	dcfg := cfg.Player.Device
	callTimeout := cfg.Player.DeviceTimeout()
	zlog.Debug().Msgf("playback: creating device: type=%s settings=%+v", dcfg.Type, dcfg.Settings)

	switch dcfg.Type {
	case "sonos":
		var s sonosSettings
		if err := decodeSettings(dcfg.Settings, &s); err != nil {
			return nil, nil, errors.Wrap(err, "sonos device settings")
		}
		dev, err := attachSonos(s.Zone, s.Host, s.discoverTimeout(), callTimeout)
		if err != nil {
			return nil, nil, err
		}
		factory := func(zone string) (device.Device, error) {
			return attachSonos(zone, "", s.discoverTimeout(), callTimeout)
		}
		return dev, factory, nil

	case "sim":
		var s simSettings
		if err := decodeSettings(dcfg.Settings, &s); err != nil {
			return nil, nil, errors.Wrap(err, "sim device settings")
		}
		build := func(zone string) (device.Device, error) {
			return devicesim.New(devicesim.Config{
				Name:        zone,
				TrackLength: time.Duration(s.TrackLengthMs) * time.Millisecond,
				Volume:      s.Volume,
			}), nil
		}
		dev, _ := build(s.Zone)
		return dev, build, nil

	default:
		return nil, nil, errors.Newf("unsupported device type: %s", dcfg.Type)
	}
}

// attachSonos connects to a player, locating it by room name first when
// no host is given.
func attachSonos(zone, host string, discoverTimeout, callTimeout time.Duration) (device.Device, error) {
	if host == "" {
		if zone == "" {
			return nil, errors.New("sonos device needs a zone or host setting")
		}
		ctx, cancel := context.WithTimeout(context.Background(), discoverTimeout+time.Second)
		defer cancel()
		z, err := sonos.LookupZone(ctx, zone, discoverTimeout)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to locate zone %s", zone)
		}
		zlog.Info().Msgf("playback: located zone %s at %s (%s)", z.Name, z.Host, z.Model)
		host = z.Host
		zone = z.Name
	}
	return sonos.New(sonos.Config{Host: host, Name: zone, Timeout: callTimeout})
}

func decodeSettings(settings map[string]any, out any) error {
	if settings == nil {
		settings = map[string]any{}
	}
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

// Package config provides configuration loading from YAML files.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Media  MediaConfig  `yaml:"media"`
	Player PlayerConfig `yaml:"player"`
	Events EventsConfig `yaml:"events"`
}

// ServerConfig represents the listening endpoints.
type ServerConfig struct {
	// APIAddr serves the control API and event streams.
	APIAddr string `yaml:"api_addr" default:":8001"`
	// MediaAddr serves raw media files to the player.
	MediaAddr string `yaml:"media_addr" default:":54000"`
	Hooks     HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// MediaConfig represents the media library layout.
type MediaConfig struct {
	// Path is the directory media files are served from.
	Path string `yaml:"path" default:"/media" validate:"required"`
	// Host is the address the player fetches media from. Autodetected
	// when empty.
	Host string `yaml:"host"`
	// DropPrefix is stripped from request paths before they are resolved
	// under Path.
	DropPrefix string `yaml:"drop_prefix" default:"/media"`
	// PlaylistDir holds the .m3u/.m3u8 files. Defaults to Path.
	PlaylistDir string `yaml:"playlist_dir"`
	// LibraryFile points to the album database. Optional.
	LibraryFile string `yaml:"library_file"`
}

// PlayerConfig represents playback control configuration.
type PlayerConfig struct {
	Device           DeviceConfig `yaml:"device"`
	PollIntervalMs   int          `yaml:"poll_interval_ms" default:"500" validate:"gte=100,lte=10000"`
	DequeueTimeoutMs int          `yaml:"dequeue_timeout_ms" default:"100" validate:"gte=10,lte=1000"`
	DeviceTimeoutMs  int          `yaml:"device_timeout_ms" default:"2000" validate:"gte=100,lte=30000"`
	QueueSize        int          `yaml:"queue_size" default:"512" validate:"gte=1"`
	Repeat           bool         `yaml:"repeat"`
	Shuffle          bool         `yaml:"shuffle"`
}

// DeviceConfig represents a single player device configuration.
type DeviceConfig struct {
	Type     string         `yaml:"type" default:"sonos" validate:"required,oneof=sonos sim"`
	Settings map[string]any `yaml:"settings"`
}

// EventsConfig represents event fan-out configuration.
type EventsConfig struct {
	// RedisAddr enables mirroring events to a Redis channel when set.
	RedisAddr    string `yaml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel" default:"sonobox:events"`
	BufferSize   int    `yaml:"buffer_size" default:"16" validate:"gte=1"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Playlists live next to the media unless pointed elsewhere.
	if cfg.Media.PlaylistDir == "" {
		cfg.Media.PlaylistDir = cfg.Media.Path
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SONOBOX_API_ADDR"); v != "" {
		c.Server.APIAddr = v
	}
	if v := os.Getenv("SONOBOX_MEDIA_ADDR"); v != "" {
		c.Server.MediaAddr = v
	}
	if v := os.Getenv("SONOBOX_MEDIA_PATH"); v != "" {
		c.Media.Path = v
	}
	if v := os.Getenv("SONOBOX_MEDIA_HOST"); v != "" {
		c.Media.Host = v
	}
	if v := os.Getenv("SONOBOX_PLAYLIST_DIR"); v != "" {
		c.Media.PlaylistDir = v
	}
	if v := os.Getenv("SONOBOX_DROP_PREFIX"); v != "" {
		c.Media.DropPrefix = v
	}
	if v := os.Getenv("SONOBOX_ZONE"); v != "" {
		if c.Player.Device.Settings == nil {
			c.Player.Device.Settings = map[string]any{}
		}
		c.Player.Device.Settings["zone"] = v
	}
	if v := os.Getenv("SONOBOX_REDIS_ADDR"); v != "" {
		c.Events.RedisAddr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateAddrs(); err != nil {
		return err
	}

	if c.Media.DropPrefix != "" && !strings.HasPrefix(c.Media.DropPrefix, "/") {
		return errors.Newf("drop_prefix (%s) must start with /", c.Media.DropPrefix)
	}

	return nil
}

// validateAddrs checks that both listen addresses parse and do not collide.
func (c *Config) validateAddrs() error {
	_, apiPort, err := net.SplitHostPort(c.Server.APIAddr)
	if err != nil {
		return errors.Wrapf(err, "invalid api_addr %s", c.Server.APIAddr)
	}
	_, mediaPort, err := net.SplitHostPort(c.Server.MediaAddr)
	if err != nil {
		return errors.Wrapf(err, "invalid media_addr %s", c.Server.MediaAddr)
	}
	if apiPort == mediaPort {
		return errors.Newf("api_addr and media_addr share port %s", apiPort)
	}
	return nil
}

// PollInterval returns the reconciliation interval.
func (c *PlayerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// DequeueTimeout returns the per-turn mailbox wait.
func (c *PlayerConfig) DequeueTimeout() time.Duration {
	return time.Duration(c.DequeueTimeoutMs) * time.Millisecond
}

// DeviceTimeout returns the per-call device deadline.
func (c *PlayerConfig) DeviceTimeout() time.Duration {
	return time.Duration(c.DeviceTimeoutMs) * time.Millisecond
}

// MediaBaseURL builds the URL prefix the player fetches media from:
// the configured media host (or fallbackHost when unset) joined with
// the media server port.
func (c *Config) MediaBaseURL(fallbackHost string) (string, error) {
	host := c.Media.Host
	if host == "" {
		host = fallbackHost
	}
	if host == "" {
		return "", errors.New("no media host configured or detected")
	}
	_, port, err := net.SplitHostPort(c.Server.MediaAddr)
	if err != nil {
		return "", errors.Wrapf(err, "invalid media_addr %s", c.Server.MediaAddr)
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, port)), nil
}

// DetectLocalIP finds the primary outbound IP address. No packets are
// sent; the dial only resolves a route.
func DetectLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", errors.Wrap(err, "failed to detect local address")
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", errors.New("unexpected local address type")
	}
	return addr.IP.String(), nil
}

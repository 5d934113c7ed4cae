// Package sonos drives a Sonos zone player over its UPnP control API.
package sonos

import (
	"context"
	"encoding/xml"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/sonobox/sonobox/internal/domain/device"
)

const controlPort = "1400"

// Config represents Sonos client configuration.
type Config struct {
	// Host is the player address, with or without the control port.
	Host string
	// Name is the room name reported in status output.
	Name string
	// Timeout bounds a single control call.
	Timeout time.Duration
}

// Client is a control client for one zone player. It implements
// device.Device.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// New creates a new Sonos client.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("player host is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	host := cfg.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, controlPort)
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Host
	}

	return &Client{
		name:       name,
		baseURL:    "http://" + host,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name returns the zone name.
func (c *Client) Name() string {
	return c.name
}

// PlayURI loads the given URI on the transport and starts playback.
func (c *Client) PlayURI(ctx context.Context, uri string) error {
	if uri == "" {
		return errors.New("uri is required")
	}
	_, err := c.call(ctx, avTransportControlPath, avTransportService, "SetAVTransportURI", []soapArg{
		{Name: "InstanceID", Value: "0"},
		{Name: "CurrentURI", Value: uri},
		{Name: "CurrentURIMetaData", Value: ""},
	})
	if err != nil {
		return err
	}
	return c.Resume(ctx)
}

// Resume starts the transport on whatever it currently holds.
func (c *Client) Resume(ctx context.Context) error {
	_, err := c.call(ctx, avTransportControlPath, avTransportService, "Play", []soapArg{
		{Name: "InstanceID", Value: "0"},
		{Name: "Speed", Value: "1"},
	})
	return err
}

// Pause pauses the transport.
func (c *Client) Pause(ctx context.Context) error {
	_, err := c.call(ctx, avTransportControlPath, avTransportService, "Pause", []soapArg{
		{Name: "InstanceID", Value: "0"},
	})
	return err
}

// Stop stops the transport.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.call(ctx, avTransportControlPath, avTransportService, "Stop", []soapArg{
		{Name: "InstanceID", Value: "0"},
	})
	return err
}

// Previous asks the player for its native previous-track behavior.
func (c *Client) Previous(ctx context.Context) error {
	_, err := c.call(ctx, avTransportControlPath, avTransportService, "Previous", []soapArg{
		{Name: "InstanceID", Value: "0"},
	})
	return err
}

// SetVolume sets the master channel volume.
func (c *Client) SetVolume(ctx context.Context, level int) error {
	if level < 0 || level > 100 {
		return errors.Newf("volume %d out of range", level)
	}
	_, err := c.call(ctx, renderingControlPath, renderingService, "SetVolume", []soapArg{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
		{Name: "DesiredVolume", Value: strconv.Itoa(level)},
	})
	return err
}

type volumeResponse struct {
	Volume int `xml:"Body>GetVolumeResponse>CurrentVolume"`
}

// Volume reads the master channel volume.
func (c *Client) Volume(ctx context.Context) (int, error) {
	data, err := c.call(ctx, renderingControlPath, renderingService, "GetVolume", []soapArg{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
	})
	if err != nil {
		return 0, err
	}
	var resp volumeResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return 0, errors.Wrap(err, "failed to parse GetVolume response")
	}
	return resp.Volume, nil
}

type transportInfoResponse struct {
	State  string `xml:"Body>GetTransportInfoResponse>CurrentTransportState"`
	Status string `xml:"Body>GetTransportInfoResponse>CurrentTransportStatus"`
}

// TransportState reads the transport state and maps it onto the device
// state vocabulary.
func (c *Client) TransportState(ctx context.Context) (device.State, error) {
	data, err := c.call(ctx, avTransportControlPath, avTransportService, "GetTransportInfo", []soapArg{
		{Name: "InstanceID", Value: "0"},
	})
	if err != nil {
		return device.StateUnknown, err
	}
	var resp transportInfoResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return device.StateUnknown, errors.Wrap(err, "failed to parse GetTransportInfo response")
	}
	return mapTransportState(resp.State), nil
}

type positionInfoResponse struct {
	TrackURI      string `xml:"Body>GetPositionInfoResponse>TrackURI"`
	TrackDuration string `xml:"Body>GetPositionInfoResponse>TrackDuration"`
	RelTime       string `xml:"Body>GetPositionInfoResponse>RelTime"`
}

// CurrentTrackURI reads the URI the transport currently holds. An empty
// transport reports an empty string.
func (c *Client) CurrentTrackURI(ctx context.Context) (string, error) {
	data, err := c.call(ctx, avTransportControlPath, avTransportService, "GetPositionInfo", []soapArg{
		{Name: "InstanceID", Value: "0"},
	})
	if err != nil {
		return "", err
	}
	var resp positionInfoResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return "", errors.Wrap(err, "failed to parse GetPositionInfo response")
	}
	return resp.TrackURI, nil
}

func mapTransportState(s string) device.State {
	switch s {
	case "PLAYING":
		return device.StatePlaying
	case "PAUSED_PLAYBACK":
		return device.StatePaused
	case "STOPPED":
		return device.StateStopped
	case "TRANSITIONING":
		return device.StateTransitioning
	default:
		return device.StateUnknown
	}
}

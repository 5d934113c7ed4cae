package sonos

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonobox/sonobox/internal/domain/device"
)

const transportInfoEnvelope = `<?xml version="1.0"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">` +
	`<s:Body><u:GetTransportInfoResponse xmlns:u="urn:schemas-upnp-org:service:AVTransport:1">` +
	`<CurrentTransportState>%s</CurrentTransportState>` +
	`<CurrentTransportStatus>OK</CurrentTransportStatus>` +
	`<CurrentSpeed>1</CurrentSpeed>` +
	`</u:GetTransportInfoResponse></s:Body></s:Envelope>`

const positionInfoEnvelope = `<?xml version="1.0"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">` +
	`<s:Body><u:GetPositionInfoResponse xmlns:u="urn:schemas-upnp-org:service:AVTransport:1">` +
	`<Track>1</Track><TrackDuration>0:03:41</TrackDuration>` +
	`<TrackURI>%s</TrackURI><RelTime>0:01:02</RelTime>` +
	`</u:GetPositionInfoResponse></s:Body></s:Envelope>`

const volumeEnvelope = `<?xml version="1.0"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">` +
	`<s:Body><u:GetVolumeResponse xmlns:u="urn:schemas-upnp-org:service:RenderingControl:1">` +
	`<CurrentVolume>%d</CurrentVolume>` +
	`</u:GetVolumeResponse></s:Body></s:Envelope>`

const faultEnvelopeBody = `<?xml version="1.0"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">` +
	`<s:Body><s:Fault><faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring>` +
	`<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0"><errorCode>701</errorCode></UPnPError></detail>` +
	`</s:Fault></s:Body></s:Envelope>`

const emptyResponseEnvelope = `<?xml version="1.0"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body/></s:Envelope>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{Host: "10.0.0.9", Name: "Den"})
	require.NoError(t, err)
	c.baseURL = srv.URL
	return c
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	c, err := New(Config{Host: "10.0.0.9"})
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.9:1400", c.baseURL)
	assert.Equal(t, "10.0.0.9", c.Name())

	c, err = New(Config{Host: "10.0.0.9:1401", Name: "Den"})
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.9:1401", c.baseURL)
	assert.Equal(t, "Den", c.Name())
}

func TestClient_PlayURI(t *testing.T) {
	var actions []string
	var bodies []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, avTransportControlPath, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		actions = append(actions, r.Header.Get("SOAPACTION"))
		bodies = append(bodies, string(body))
		fmt.Fprint(w, emptyResponseEnvelope)
	})

	err := c.PlayURI(context.Background(), "http://192.168.1.5:54000/music/a&b.mp3")
	require.NoError(t, err)

	require.Len(t, actions, 2)
	assert.Equal(t, `"urn:schemas-upnp-org:service:AVTransport:1#SetAVTransportURI"`, actions[0])
	assert.Equal(t, `"urn:schemas-upnp-org:service:AVTransport:1#Play"`, actions[1])
	assert.Contains(t, bodies[0], "<CurrentURI>http://192.168.1.5:54000/music/a&amp;b.mp3</CurrentURI>")
	assert.Contains(t, bodies[1], "<Speed>1</Speed>")
}

func TestClient_PlayURIRequiresURI(t *testing.T) {
	hit := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hit = true
	})

	err := c.PlayURI(context.Background(), "")
	require.Error(t, err)
	assert.False(t, hit)
}

func TestClient_TransportState(t *testing.T) {
	tests := []struct {
		reported string
		want     device.State
	}{
		{reported: "PLAYING", want: device.StatePlaying},
		{reported: "PAUSED_PLAYBACK", want: device.StatePaused},
		{reported: "STOPPED", want: device.StateStopped},
		{reported: "TRANSITIONING", want: device.StateTransitioning},
		{reported: "NO_MEDIA_PRESENT", want: device.StateUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.reported, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, `"urn:schemas-upnp-org:service:AVTransport:1#GetTransportInfo"`, r.Header.Get("SOAPACTION"))
				fmt.Fprintf(w, transportInfoEnvelope, tt.reported)
			})

			got, err := c.TransportState(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_CurrentTrackURI(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, positionInfoEnvelope, "http://192.168.1.5:54000/music/current.mp3")
	})

	uri, err := c.CurrentTrackURI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.5:54000/music/current.mp3", uri)
}

func TestClient_Volume(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, renderingControlPath, r.URL.Path)
		fmt.Fprintf(w, volumeEnvelope, 42)
	})

	vol, err := c.Volume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, vol)
}

func TestClient_SetVolume(t *testing.T) {
	var body string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		fmt.Fprint(w, emptyResponseEnvelope)
	})

	require.NoError(t, c.SetVolume(context.Background(), 37))
	assert.Contains(t, body, "<Channel>Master</Channel>")
	assert.Contains(t, body, "<DesiredVolume>37</DesiredVolume>")

	require.Error(t, c.SetVolume(context.Background(), 101))
}

func TestClient_UPnPFaultSurfacesCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, faultEnvelopeBody)
	})

	err := c.Previous(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPnP error 701")
}

func TestParseLocation(t *testing.T) {
	resp := "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age = 1800\r\n" +
		"EXT:\r\n" +
		"LOCATION: http://192.168.1.23:1400/xml/device_description.xml\r\n" +
		"ST: urn:schemas-upnp-org:device:ZonePlayer:1\r\n\r\n"

	assert.Equal(t, "http://192.168.1.23:1400/xml/device_description.xml", parseLocation([]byte(resp)))
	assert.Equal(t, "", parseLocation([]byte("HTTP/1.1 200 OK\r\n\r\n")))
}

func TestDescribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>`+
			`<root xmlns="urn:schemas-upnp-org:device-1-0"><device>`+
			`<roomName>Den</roomName><modelName>Sonos One</modelName>`+
			`</device></root>`)
	}))
	t.Cleanup(srv.Close)

	zone, err := describe(context.Background(), srv.URL+"/xml/device_description.xml")
	require.NoError(t, err)
	assert.Equal(t, "Den", zone.Name)
	assert.Equal(t, "Sonos One", zone.Model)
	assert.Equal(t, "127.0.0.1", zone.Host)
}

package sonos

import (
	"bufio"
	"context"
	"encoding/xml"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const (
	ssdpAddr     = "239.255.255.250:1900"
	searchTarget = "urn:schemas-upnp-org:device:ZonePlayer:1"
)

// Zone is a player found on the local network.
type Zone struct {
	Name  string `json:"name"`
	Host  string `json:"host"`
	Model string `json:"model"`
}

// Discover searches the local network for zone players. It listens for
// responses until the timeout passes; a short timeout only limits how
// many players answer in time.
func Discover(ctx context.Context, timeout time.Duration) ([]Zone, error) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open discovery socket")
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", ssdpAddr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve ssdp address")
	}

	search := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: " + ssdpAddr + "\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 1\r\n" +
		"ST: " + searchTarget + "\r\n\r\n"
	// UDP is lossy, send the probe twice.
	for i := 0; i < 2; i++ {
		if _, err := conn.WriteTo([]byte(search), dst); err != nil {
			return nil, errors.Wrap(err, "failed to send discovery probe")
		}
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	seen := map[string]bool{}
	var zones []Zone
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			break // deadline passed
		}
		loc := parseLocation(buf[:n])
		if loc == "" || seen[loc] {
			continue
		}
		seen[loc] = true

		zone, err := describe(ctx, loc)
		if err != nil {
			zlog.Debug().Err(err).Msgf("sonos: skipping device at %s", loc)
			continue
		}
		zones = append(zones, zone)
	}

	sort.Slice(zones, func(i, j int) bool { return zones[i].Name < zones[j].Name })
	return zones, nil
}

// LookupZone finds a player by room name.
func LookupZone(ctx context.Context, name string, timeout time.Duration) (Zone, error) {
	zones, err := Discover(ctx, timeout)
	if err != nil {
		return Zone{}, err
	}
	for _, z := range zones {
		if strings.EqualFold(z.Name, name) {
			return z, nil
		}
	}
	return Zone{}, errors.Newf("zone %s not found (%d zones visible)", name, len(zones))
}

// parseLocation pulls the LOCATION header out of an SSDP response.
func parseLocation(data []byte) string {
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := sc.Text()
		if len(line) > 9 && strings.EqualFold(line[:9], "LOCATION:") {
			return strings.TrimSpace(line[9:])
		}
	}
	return ""
}

type deviceDescription struct {
	Device struct {
		RoomName  string `xml:"roomName"`
		ModelName string `xml:"modelName"`
	} `xml:"device"`
}

// describe fetches and parses a device description document.
func describe(ctx context.Context, location string) (Zone, error) {
	u, err := url.Parse(location)
	if err != nil {
		return Zone{}, errors.Wrap(err, "bad device location")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return Zone{}, errors.Wrap(err, "failed to create description request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Zone{}, errors.Wrap(err, "failed to fetch device description")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Zone{}, errors.Wrap(err, "failed to read device description")
	}
	var desc deviceDescription
	if err := xml.Unmarshal(data, &desc); err != nil {
		return Zone{}, errors.Wrap(err, "failed to parse device description")
	}
	if desc.Device.RoomName == "" {
		return Zone{}, errors.New("device has no room name")
	}

	return Zone{
		Name:  desc.Device.RoomName,
		Host:  u.Hostname(),
		Model: desc.Device.ModelName,
	}, nil
}

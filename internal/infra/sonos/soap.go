package sonos

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	avTransportService     = "urn:schemas-upnp-org:service:AVTransport:1"
	avTransportControlPath = "/MediaRenderer/AVTransport/Control"

	renderingService     = "urn:schemas-upnp-org:service:RenderingControl:1"
	renderingControlPath = "/MediaRenderer/RenderingControl/Control"
)

// soapArg is one action argument. Order is preserved: the player's UPnP
// stack rejects envelopes with reordered arguments.
type soapArg struct {
	Name  string
	Value string
}

const envelopeFormat = `<?xml version="1.0" encoding="utf-8"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
	`<s:Body><u:%[1]s xmlns:u="%[2]s">%[3]s</u:%[1]s></s:Body></s:Envelope>`

func buildEnvelope(action, service string, args []soapArg) string {
	var b strings.Builder
	for _, a := range args {
		b.WriteString("<" + a.Name + ">")
		var escaped bytes.Buffer
		_ = xml.EscapeText(&escaped, []byte(a.Value))
		b.Write(escaped.Bytes())
		b.WriteString("</" + a.Name + ">")
	}
	return fmt.Sprintf(envelopeFormat, action, service, b.String())
}

// faultEnvelope extracts the UPnP error code from a SOAP fault.
type faultEnvelope struct {
	Code string `xml:"Body>Fault>detail>UPnPError>errorCode"`
}

// call performs one SOAP action and returns the raw response envelope.
func (c *Client) call(ctx context.Context, controlPath, service, action string, args []soapArg) ([]byte, error) {
	body := buildEnvelope(action, service, args)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+controlPath, strings.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s request", action)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", fmt.Sprintf("%q", service+"#"+action))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send %s", action)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s response", action)
	}
	if resp.StatusCode != http.StatusOK {
		var fault faultEnvelope
		if xml.Unmarshal(data, &fault) == nil && fault.Code != "" {
			return nil, errors.Newf("%s failed: UPnP error %s", action, fault.Code)
		}
		return nil, errors.Newf("%s failed: status %d", action, resp.StatusCode)
	}
	return data, nil
}

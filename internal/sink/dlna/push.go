package dlna

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aaeq-audio/aaeq/internal/errors"
)

const ssdpAddr = "239.255.255.250:1900"
const avTransportST = "urn:schemas-upnp-org:device:MediaRenderer:1"

// deviceDescription is the subset of a UPnP device description XML needed
// to find the AVTransport control URL.
type deviceDescription struct {
	XMLName xml.Name `xml:"root"`
	Device  struct {
		FriendlyName string `xml:"friendlyName"`
		Manufacturer string `xml:"manufacturer"`
		ServiceList  struct {
			Service []struct {
				ServiceType string `xml:"serviceType"`
				ControlURL  string `xml:"controlURL"`
			} `xml:"service"`
		} `xml:"serviceList"`
	} `xml:"device"`
}

// discoveredDevice is the result of an SSDP M-SEARCH + description fetch.
type discoveredDevice struct {
	Location     string
	ControlURL   string
	FriendlyName string
	Manufacturer string
}

// discover sends an SSDP M-SEARCH for MediaRenderer devices and returns
// the first responder's parsed device description.
func discover(ctx context.Context, timeout time.Duration) (*discoveredDevice, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, errors.New(err).Component("sink.dlna").Category(errors.CategoryNetwork).Build()
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", ssdpAddr)
	if err != nil {
		return nil, errors.New(err).Component("sink.dlna").Category(errors.CategoryNetwork).Build()
	}

	msg := fmt.Sprintf("M-SEARCH * HTTP/1.1\r\n"+
		"HOST: %s\r\n"+
		"MAN: \"ssdp:discover\"\r\n"+
		"MX: 2\r\n"+
		"ST: %s\r\n\r\n", ssdpAddr, avTransportST)

	if _, err := conn.WriteTo([]byte(msg), dst); err != nil {
		return nil, errors.New(err).Component("sink.dlna").Category(errors.CategoryNetwork).Build()
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 2048)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		return nil, errors.New(err).
			Component("sink.dlna").
			Category(errors.CategoryNetwork).
			ErrCode(errors.CodeTimeout).
			Build()
	}

	location := parseLocationHeader(string(buf[:n]))
	if location == "" {
		return nil, errors.Newf("dlna: SSDP response missing LOCATION header").
			Component("sink.dlna").
			Category(errors.CategoryProtocol).
			Build()
	}

	desc, err := fetchDescription(ctx, location)
	if err != nil {
		return nil, err
	}

	controlURL := ""
	for _, svc := range desc.Device.ServiceList.Service {
		if strings.Contains(svc.ServiceType, "AVTransport") {
			controlURL = resolveRelative(location, svc.ControlURL)
			break
		}
	}
	if controlURL == "" {
		return nil, errors.Newf("dlna: no AVTransport service in device description").
			Component("sink.dlna").
			Category(errors.CategoryProtocol).
			Build()
	}

	return &discoveredDevice{
		Location:     location,
		ControlURL:   controlURL,
		FriendlyName: desc.Device.FriendlyName,
		Manufacturer: desc.Device.Manufacturer,
	}, nil
}

func parseLocationHeader(resp string) string {
	for _, line := range strings.Split(resp, "\r\n") {
		if strings.HasPrefix(strings.ToUpper(line), "LOCATION:") {
			return strings.TrimSpace(line[len("LOCATION:"):])
		}
	}
	return ""
}

func resolveRelative(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	idx := strings.Index(base[len("http://"):], "/")
	if idx < 0 {
		return base + ref
	}
	host := base[:len("http://")+idx]
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return host + ref
}

func fetchDescription(ctx context.Context, location string) (*deviceDescription, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.New(err).Component("sink.dlna").Category(errors.CategoryNetwork).Build()
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.New(err).Component("sink.dlna").Category(errors.CategoryNetwork).Build()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(err).Component("sink.dlna").Category(errors.CategoryNetwork).Build()
	}

	var desc deviceDescription
	if err := xml.Unmarshal(body, &desc); err != nil {
		return nil, errors.New(err).Component("sink.dlna").Category(errors.CategoryProtocol).Build()
	}
	return &desc, nil
}

// didlLiteItem builds the DIDL-Lite metadata describing the stream, per
// the spec's "upnp:class object.item.audioItem.musicTrack" and
// res/protocolInfo requirement.
func didlLiteItem(streamURL string) string {
	return fmt.Sprintf(`<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/" `+
		`xmlns:dc="http://purl.org/dc/elements/1.1/" `+
		`xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/">`+
		`<item id="0" parentID="-1" restricted="1">`+
		`<dc:title>AAEQ Stream</dc:title>`+
		`<upnp:class>object.item.audioItem.musicTrack</upnp:class>`+
		`<res protocolInfo="http-get:*:audio/L16:*">%s</res>`+
		`</item></DIDL-Lite>`, xmlEscape(streamURL))
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func soapEnvelope(action, serviceType, body string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>`+
		`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" `+
		`s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`+
		`<s:Body><u:%s xmlns:u="%s">%s</u:%s></s:Body></s:Envelope>`,
		action, serviceType, body, action)
}

func soapCall(ctx context.Context, controlURL, action, body string) error {
	envelope := soapEnvelope(action, "urn:schemas-upnp-org:service:AVTransport:1", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, strings.NewReader(envelope))
	if err != nil {
		return errors.New(err).Component("sink.dlna").Category(errors.CategoryNetwork).Build()
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", fmt.Sprintf(`"urn:schemas-upnp-org:service:AVTransport:1#%s"`, action))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.New(err).Component("sink.dlna").Category(errors.CategoryNetwork).Build()
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Newf("dlna: SOAP action %s failed with status %d", action, resp.StatusCode).
			Component("sink.dlna").
			Category(errors.CategoryProtocol).
			Build()
	}
	return nil
}

// pushController holds the engaged renderer for a push-mode sink's
// lifetime: SetAVTransportURI + Play on open, Stop on close.
type pushController struct {
	controlURL string
	device     *discoveredDevice
}

func startPush(ctx context.Context, streamURL string) (*pushController, error) {
	dev, err := discover(ctx, 3*time.Second)
	if err != nil {
		return nil, err
	}

	setURIBody := fmt.Sprintf(
		`<InstanceID>0</InstanceID><CurrentURI>%s</CurrentURI>`+
			`<CurrentURIMetaData>%s</CurrentURIMetaData>`,
		xmlEscape(streamURL), xmlEscape(didlLiteItem(streamURL)))
	if err := soapCall(ctx, dev.ControlURL, "SetAVTransportURI", setURIBody); err != nil {
		return nil, err
	}

	playBody := `<InstanceID>0</InstanceID><Speed>1</Speed>`
	if err := soapCall(ctx, dev.ControlURL, "Play", playBody); err != nil {
		return nil, err
	}

	return &pushController{controlURL: dev.ControlURL, device: dev}, nil
}

func (p *pushController) stop(ctx context.Context) error {
	return soapCall(ctx, p.controlURL, "Stop", `<InstanceID>0</InstanceID>`)
}

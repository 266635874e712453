package client

import (
	"fmt"
	"net/url"

	"ucams-cli/pkg/models"
)

// Capability selects one of the URLs derived from a camera's resource token.
type Capability string

const (
	CapabilityStream     Capability = "stream"
	CapabilityWSStream   Capability = "ws_stream"
	CapabilityScreenshot Capability = "screenshot"
)

// ParseCapability accepts the capability names and a few CLI aliases.
func ParseCapability(s string) (Capability, error) {
	switch s {
	case "stream", "video", "rtsp":
		return CapabilityStream, nil
	case "ws_stream", "ws", "ws_video", "websocket":
		return CapabilityWSStream, nil
	case "screenshot", "screen", "image":
		return CapabilityScreenshot, nil
	}
	return "", fmt.Errorf("unknown capability %q (want stream, ws_stream or screenshot)", s)
}

// Longest clip the backend serves as mp4; longer windows come as MPEG-TS.
const maxMP4Duration = 3600

// StreamURL is the RTSP stream of a camera.
func StreamURL(domain, id, token string) string {
	return fmt.Sprintf("rtsp://%s/%s?token=%s&tracks=v1a1", domain, id, url.QueryEscape(token))
}

// WSStreamURL is the low-latency MSE stream over websocket.
func WSStreamURL(domain, id, token string) string {
	return fmt.Sprintf("wss://%s/%s/mse_ld?tracks=a1v1&realtime=true&token=%s", domain, id, url.QueryEscape(token))
}

// ScreenshotURL is the 600px preview image.
func ScreenshotURL(screenshotDomain, id, token string) string {
	return fmt.Sprintf("https://%s/api/v0/screenshots/%s~600.jpg?token=%s", screenshotDomain, id, url.QueryEscape(token))
}

// ArchiveExt picks the container the backend serves for a window length.
func ArchiveExt(durationSeconds int) string {
	if durationSeconds <= maxMP4Duration {
		return "mp4"
	}
	return "ts"
}

// ArchiveURL is the download link of a recorded window.
func ArchiveURL(domain, id string, start int64, durationSeconds int, downloadToken string) string {
	return fmt.Sprintf("https://%s/%s/archive-%d-%d.%s?token=%s",
		domain, id, start, durationSeconds, ArchiveExt(durationSeconds), url.QueryEscape(downloadToken))
}

// normalizeCamera derives the capability URLs of a raw listing entry.
func normalizeCamera(raw models.RawCamera) models.Camera {
	return models.Camera{
		ID:               raw.Number,
		Title:            raw.Title,
		Address:          raw.Address,
		Domain:           raw.Server.Domain,
		ScreenshotDomain: raw.Server.ScreenshotDomain,
		Token:            raw.TokenL,
		DVRHours:         raw.Tariff.DVRHours,
		URLs: models.CameraURLs{
			Stream:     StreamURL(raw.Server.Domain, raw.Number, raw.TokenL),
			WSStream:   WSStreamURL(raw.Server.Domain, raw.Number, raw.TokenL),
			Screenshot: ScreenshotURL(raw.Server.ScreenshotDomain, raw.Number, raw.TokenL),
		},
	}
}

func urlFor(cam models.Camera, c Capability) string {
	switch c {
	case CapabilityStream:
		return cam.URLs.Stream
	case CapabilityWSStream:
		return cam.URLs.WSStream
	case CapabilityScreenshot:
		return cam.URLs.Screenshot
	}
	return ""
}

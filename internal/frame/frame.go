// Package frame pulls a single still image out of a live camera stream.
package frame

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrNoFrame is returned when the capture produced no image.
var ErrNoFrame = errors.New("no frame captured")

// Capturer grabs one frame from a stream URL.
type Capturer interface {
	Capture(ctx context.Context, streamURL string) ([]byte, error)
}

// CommandRunner executes an external command and returns its stdout.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// FFmpeg captures the first frame of a stream with the ffmpeg binary.
type FFmpeg struct {
	Binary  string
	Run     CommandRunner
	Timeout time.Duration
}

// NewFFmpeg returns a Capturer shelling out to ffmpeg.
func NewFFmpeg(binary string, timeout time.Duration) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &FFmpeg{
		Binary:  binary,
		Run:     defaultCommandRunner,
		Timeout: timeout,
	}
}

// Args are the ffmpeg arguments for a capture of streamURL. The image is
// written to stdout as JPEG.
func Args(streamURL string) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if strings.HasPrefix(streamURL, "rtsp://") {
		args = append(args, "-rtsp_transport", "tcp")
	}
	return append(args,
		"-i", streamURL,
		"-vf", `select=eq(n\,0)`,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-",
	)
}

func (f *FFmpeg) Capture(ctx context.Context, streamURL string) ([]byte, error) {
	if streamURL == "" {
		return nil, errors.New("stream url is empty")
	}
	if f.Run == nil {
		f.Run = defaultCommandRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	out, err := f.Run(execCtx, f.Binary, Args(streamURL)...)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg capture: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoFrame
	}
	return out, nil
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

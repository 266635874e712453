package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"ucams-cli/internal/logging"
	"ucams-cli/pkg/models"
)

// CameraImage downloads the current screenshot of a camera.
// ok is false when the camera is unknown.
func (c *CamerasClient) CameraImage(ctx context.Context, id string) ([]byte, bool, error) {
	screenURL, ok, err := c.CameraURL(ctx, id, CapabilityScreenshot)
	if err != nil || !ok {
		return nil, ok, err
	}

	resp, err := c.send(ctx, "get screenshot", func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Accept", "image/jpeg, */*").Get(screenURL)
	})
	if err != nil {
		return nil, false, err
	}

	if len(resp.Body()) == 0 {
		return nil, false, errors.New("screenshot response body is empty")
	}

	c.log.Debug("screenshot fetched",
		logging.CameraID(id),
		logging.Status(resp.StatusCode()),
	)

	return resp.Body(), true, nil
}

// CameraArchive requests a download token for the window [start, start+duration)
// and builds the archive link. ok is false when the camera is unknown or the
// backend did not return a token for it.
func (c *CamerasClient) CameraArchive(ctx context.Context, id string, start int64, durationSeconds int) (models.ArchiveLink, bool, error) {
	if durationSeconds <= 0 {
		return models.ArchiveLink{}, false, fmt.Errorf("archive duration must be positive, got %d", durationSeconds)
	}

	cam, ok, err := c.Camera(ctx, id)
	if err != nil || !ok {
		return models.ArchiveLink{}, ok, err
	}

	payload := models.ArchiveTokenRequest{
		Fields:         []string{"token_d"},
		TokenDTTL:      tokenDTTL,
		TokenDDuration: durationSeconds,
		TokenDStart:    start,
		Numbers:        []string{id},
	}

	var respData models.ArchiveTokenResponse

	// POST /api/v0/cameras/this/?lang=ru
	_, err = c.send(ctx, "get archive token", func(r *resty.Request) (*resty.Response, error) {
		respData = models.ArchiveTokenResponse{}
		return r.
			SetQueryParam("lang", "ru").
			SetBody(payload).
			SetResult(&respData).
			Post("/api/v0/cameras/this/")
	})
	if err != nil {
		return models.ArchiveLink{}, false, err
	}

	for _, res := range respData.Results {
		if res.Number != id || res.TokenD == "" {
			continue
		}
		return models.ArchiveLink{
			URL:      ArchiveURL(cam.Domain, id, start, durationSeconds, res.TokenD),
			Token:    res.TokenD,
			CameraID: id,
			Start:    start,
			Duration: durationSeconds,
		}, true, nil
	}

	c.log.Warn("archive token missing from response", logging.CameraID(id))
	return models.ArchiveLink{}, false, nil
}

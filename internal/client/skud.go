package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"ucams-cli/internal/logging"
	"ucams-cli/pkg/models"
)

// SharedDevices lists the access-control devices shared with the account.
// The list is not cached.
func (c *PortalClient) SharedDevices(ctx context.Context) ([]models.SharedDevice, error) {
	var respData []models.SharedDevice

	// GET /api/v0/skud/shared/
	_, err := c.send(ctx, "list shared devices", func(r *resty.Request) (*resty.Response, error) {
		respData = nil
		return r.SetResult(&respData).Get("/api/v0/skud/shared/")
	})
	if err != nil {
		return nil, err
	}

	return respData, nil
}

// Unlock opens the device. Success is the absence of an error; the payload is
// returned as-is.
func (c *PortalClient) Unlock(ctx context.Context, deviceID int) (models.UnlockResponse, error) {
	var respData models.UnlockResponse

	c.log.Debug("opening shared device", logging.DeviceID(deviceID))

	// GET /api/v0/skud/shared/{id}/open/
	_, err := c.send(ctx, "unlock device "+strconv.Itoa(deviceID), func(r *resty.Request) (*resty.Response, error) {
		respData = nil
		return r.
			SetPathParam("id", strconv.Itoa(deviceID)).
			SetResult(&respData).
			Get("/api/v0/skud/shared/{id}/open/")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open device %d: %w", deviceID, err)
	}

	return respData, nil
}

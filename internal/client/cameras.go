package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ucams-cli/internal/auth"
	"ucams-cli/internal/logging"
	"ucams-cli/internal/naming"
	"ucams-cli/internal/token"
	"ucams-cli/pkg/models"
)

const (
	authTTL    = 20800 // camera service session lifetime requested, seconds
	tokenLTTL  = 86400 // resource token lifetime requested with the listing
	tokenDTTL  = 86400 // archive download token lifetime
	maxPages   = 500
	refreshKey = "cameras"
)

var cameraFields = []string{
	"number",
	"address",
	"title",
	"longitude",
	"latitude",
	"is_embed",
	"analytics",
	"is_fav",
	"is_public",
	"inactivity_period",
	"server",
	"tariff",
	"token_l",
	"permission",
	"record_disable_period",
}

// BearerSource is the read-only view of the portal session the camera
// session authenticates with. It must not be used to change portal state.
type BearerSource interface {
	CurrentBearer(ctx context.Context) (string, error)
	BearerExpiry() time.Time
	Contracts(ctx context.Context) ([]models.Contract, error)
}

// bearerInvalidator is implemented by portal sessions that can drop a bearer
// the camera service refused.
type bearerInvalidator interface {
	Invalidate(bearer string)
}

// CamerasClient is the camera service session. It owns its bearer token and
// the in-memory camera inventory.
type CamerasClient struct {
	HTTP *resty.Client

	portal   BearerSource
	name     string
	pageSize int

	// mu serializes origin discovery, token exchange and the calls relying on it.
	mu     sync.Mutex
	origin string
	token  auth.Token

	camMu   sync.RWMutex
	cameras map[string]models.Camera

	refresh singleflight.Group

	log *zap.Logger
	now func() time.Time
}

// NewCameras creates a camera session bound to a portal session. The camera
// service origin is discovered on first use.
func NewCameras(cfg Config, portal BearerSource, logger *zap.Logger) *CamerasClient {
	cfg = cfg.withDefaults()

	return &CamerasClient{
		HTTP:     newHTTP(cfg, camerasUserAgent),
		portal:   portal,
		name:     cfg.Name,
		pageSize: cfg.PageSize,
		cameras:  make(map[string]models.Camera),
		log:      logging.OrNop(logger).With(logging.Component("cameras"), logging.Account(cfg.Name)),
		now:      time.Now,
	}
}

// EnsureAuthenticated discovers the origin if needed and exchanges the portal
// token for a camera service token when ours is missing or stale.
func (c *CamerasClient) EnsureAuthenticated(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensure(ctx, false)
}

// Origin is the discovered camera service base URL, empty before discovery.
func (c *CamerasClient) Origin() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.origin
}

func (c *CamerasClient) ensure(ctx context.Context, force bool) error {
	if c.origin == "" {
		if err := c.discoverOrigin(ctx); err != nil {
			return err
		}
	}

	now := c.now()
	portalExp := c.portal.BearerExpiry()
	portalExpired := portalExp.IsZero() || !now.Before(portalExp)

	if !force && !portalExpired && !c.token.NeedsRefresh(now, auth.RefreshBuffer) {
		return nil
	}
	return c.exchange(ctx)
}

func (c *CamerasClient) discoverOrigin(ctx context.Context) error {
	contracts, err := c.portal.Contracts(ctx)
	if err != nil {
		return fmt.Errorf("discover camera service: %w", err)
	}

	if len(contracts) == 0 {
		return ErrOriginUnavailable
	}
	origin := strings.TrimSpace(contracts[0].ISPOrg.CamsServer.URL)
	if origin == "" {
		return ErrOriginUnavailable
	}

	c.origin = strings.TrimRight(origin, "/")
	c.HTTP.SetBaseURL(c.origin)
	c.log.Info("camera service discovered", logging.Origin(c.origin))
	return nil
}

// exchange trades the portal bearer for a camera service bearer. A refused
// bearer is invalidated on the portal and the exchange is tried once more
// with a fresh login.
func (c *CamerasClient) exchange(ctx context.Context) error {
	resp, bearer, err := c.requestToken(ctx)
	if err != nil {
		return err
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		if inv, ok := c.portal.(bearerInvalidator); ok {
			c.log.Debug("portal bearer refused by camera service, logging in again")
			inv.Invalidate(bearer)
			if resp, _, err = c.requestToken(ctx); err != nil {
				return err
			}
		}
	}

	if resp.IsError() {
		return newAuthError("camera token exchange", resp)
	}

	result, ok := resp.Result().(*models.CamsAuthResponse)
	if !ok || result.Token == "" {
		return &AuthError{Op: "camera token exchange", StatusCode: resp.StatusCode(), Body: "no token in response"}
	}

	c.token = auth.NewToken(result.Token, 0, c.now())
	c.HTTP.SetHeader("Authorization", auth.Header(auth.SchemeBearer, result.Token))

	c.log.Debug("camera token exchanged", logging.Expiry(c.token.Expiry))
	return nil
}

func (c *CamerasClient) requestToken(ctx context.Context) (*resty.Response, string, error) {
	bearer, err := c.portal.CurrentBearer(ctx)
	if err != nil {
		return nil, "", err
	}

	// POST /api/v0/auth/?ttl=20800
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetHeader("Authorization", auth.Header(auth.SchemeJWT, bearer)).
		SetQueryParam("ttl", fmt.Sprint(authTTL)).
		SetResult(&models.CamsAuthResponse{}).
		Post("/api/v0/auth/")

	if err != nil {
		return nil, bearer, fmt.Errorf("camera token exchange: %w", err)
	}
	return resp, bearer, nil
}

// send runs one request under the session lock with the 401 retry policy.
func (c *CamerasClient) send(ctx context.Context, op string, build func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := call(ctx, c, op, func(ctx context.Context) (*resty.Response, error) {
		return build(c.HTTP.R().SetContext(ctx))
	})
	if err == nil {
		c.log.Debug(op, logging.Path(resp.Request.URL), logging.Status(resp.StatusCode()))
	}
	return resp, err
}

// ListCameras refreshes the inventory and returns a snapshot of it.
// Concurrent callers share one in-flight listing. A caller giving up does not
// cancel the listing for the others.
func (c *CamerasClient) ListCameras(ctx context.Context) (map[string]models.Camera, error) {
	ch := c.refresh.DoChan(refreshKey, func() (any, error) {
		return nil, c.refreshCameras(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
	}
	return c.Cameras(), nil
}

// Cameras returns a copy of the cached inventory without any request.
func (c *CamerasClient) Cameras() map[string]models.Camera {
	c.camMu.RLock()
	defer c.camMu.RUnlock()

	out := make(map[string]models.Camera, len(c.cameras))
	for id, cam := range c.cameras {
		out[id] = cam
	}
	return out
}

func (c *CamerasClient) refreshCameras(ctx context.Context) error {
	raw, err := c.fetchCameras(ctx)
	if err != nil {
		return err
	}

	cams := make(map[string]models.Camera, len(raw))
	for _, r := range raw {
		if r.Number == "" {
			continue
		}
		cams[r.Number] = normalizeCamera(r)
	}

	// The listing is authoritative: cameras gone from it are dropped.
	c.camMu.Lock()
	c.cameras = cams
	c.camMu.Unlock()

	c.log.Debug("camera inventory refreshed", zap.Int("count", len(cams)))
	return nil
}

// fetchCameras pages through the listing until a short page. A 401 restarts
// the listing from the first page.
func (c *CamerasClient) fetchCameras(ctx context.Context) ([]models.RawCamera, error) {
	var all []models.RawCamera

	payload := models.CameraListRequest{
		OrderBy:   "addr_asc",
		Fields:    cameraFields,
		TokenLTTL: tokenLTTL,
		PageSize:  c.pageSize,
	}

	// POST /api/v0/cameras/my/
	_, err := c.send(ctx, "list cameras", func(_ *resty.Request) (*resty.Response, error) {
		all = all[:0]
		for page := 1; page <= maxPages; page++ {
			payload.Page = page

			var respData models.CameraListResponse
			resp, err := c.HTTP.R().
				SetContext(ctx).
				SetBody(payload).
				SetResult(&respData).
				Post("/api/v0/cameras/my/")
			if err != nil || resp.IsError() {
				return resp, err
			}

			c.log.Debug("camera page fetched", logging.Page(page), zap.Int("results", len(respData.Results)))
			all = append(all, respData.Results...)
			if len(respData.Results) < c.pageSize {
				return resp, nil
			}
		}
		return nil, fmt.Errorf("listing did not end after %d pages", maxPages)
	})
	if err != nil {
		return nil, err
	}

	return all, nil
}

func (c *CamerasClient) lookup(id string) (models.Camera, bool) {
	c.camMu.RLock()
	defer c.camMu.RUnlock()
	cam, ok := c.cameras[id]
	return cam, ok
}

// Camera returns the cached record, refreshing the inventory once when the
// id is unknown. ok is false when the camera does not exist.
func (c *CamerasClient) Camera(ctx context.Context, id string) (models.Camera, bool, error) {
	if cam, ok := c.lookup(id); ok {
		return cam, true, nil
	}
	if _, err := c.ListCameras(ctx); err != nil {
		return models.Camera{}, false, err
	}
	cam, ok := c.lookup(id)
	return cam, ok, nil
}

// CameraURL returns the capability URL of a camera. Every access checks the
// resource token embedded in the URL and refreshes the inventory once when it
// is unknown or about to expire.
func (c *CamerasClient) CameraURL(ctx context.Context, id string, capability Capability) (string, bool, error) {
	refreshed := false

	cam, ok := c.lookup(id)
	if !ok {
		if _, err := c.ListCameras(ctx); err != nil {
			return "", false, err
		}
		refreshed = true
		if cam, ok = c.lookup(id); !ok {
			return "", false, nil
		}
	}

	if !refreshed && token.Decode(cam.Token).ExpiresWithin(c.now(), auth.RefreshBuffer) {
		c.log.Debug("resource token stale, refreshing inventory", logging.CameraID(id), logging.Capability(string(capability)))
		if _, err := c.ListCameras(ctx); err != nil {
			return "", false, err
		}
		if cam, ok = c.lookup(id); !ok {
			return "", false, nil
		}
	}

	u := urlFor(cam, capability)
	if u == "" {
		return "", false, fmt.Errorf("unknown capability %q", capability)
	}
	return u, true, nil
}

// BuildDeviceName derives the display name of a camera or device title.
func (c *CamerasClient) BuildDeviceName(title string) string {
	return naming.BuildDeviceName(c.name, title)
}

// Close drops idle connections. The session stays usable.
func (c *CamerasClient) Close() {
	c.HTTP.GetClient().CloseIdleConnections()
}

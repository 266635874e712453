package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"ucams-cli/internal/auth"
	"ucams-cli/internal/logging"
	"ucams-cli/pkg/models"
)

// PortalClient is the subscriber portal session. It owns the account
// credential and the portal token.
type PortalClient struct {
	HTTP *resty.Client

	contract string
	password string

	// mu serializes check-refresh-call sequences.
	mu    sync.Mutex
	token atomic.Pointer[auth.Token]

	log *zap.Logger
	now func() time.Time
}

// NewPortal creates a portal session. No request is made until the first call.
func NewPortal(cfg Config, logger *zap.Logger) *PortalClient {
	cfg = cfg.withDefaults()

	r := newHTTP(cfg, portalUserAgent)
	r.SetBaseURL(cfg.DomURL)

	c := &PortalClient{
		HTTP:     r,
		contract: cfg.Contract,
		password: cfg.Password,
		log:      logging.OrNop(logger).With(logging.Component("portal"), logging.Account(cfg.Name)),
		now:      time.Now,
	}
	c.token.Store(&auth.Token{})
	return c
}

// EnsureAuthenticated logs in when there is no token or it is about to expire.
func (c *PortalClient) EnsureAuthenticated(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensure(ctx, false)
}

func (c *PortalClient) ensure(ctx context.Context, force bool) error {
	if !force && !c.token.Load().NeedsRefresh(c.now(), auth.RefreshBuffer) {
		return nil
	}
	return c.login(ctx)
}

// login exchanges the contract credential for a portal token. A failed login
// leaves the previous token in place.
func (c *PortalClient) login(ctx context.Context) error {
	if c.contract == "" || c.password == "" {
		return &AuthError{Op: "portal login", Body: "contract and password are required"}
	}

	payload := models.PortalLoginPayload{
		Contract: c.contract,
		Password: c.password,
	}

	// POST /api/v1/auth/auth_by_contract/
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&models.PortalLoginResponse{}).
		Post("/api/v1/auth/auth_by_contract/")

	if err != nil {
		return fmt.Errorf("portal login: %w", err)
	}

	if resp.IsError() {
		return newAuthError("portal login", resp)
	}

	result, ok := resp.Result().(*models.PortalLoginResponse)
	if !ok || result.Token.Access == "" {
		return &AuthError{Op: "portal login", StatusCode: resp.StatusCode(), Body: "no access token in response"}
	}

	tok := auth.NewToken(result.Token.Access, result.Token.Exp, c.now())
	c.token.Store(&tok)
	c.HTTP.SetHeader("Authorization", auth.Header(auth.SchemeJWT, tok.Value))

	c.log.Debug("portal login successful", logging.Expiry(tok.Expiry))
	return nil
}

// CurrentBearer returns a valid portal token, logging in first if needed.
func (c *PortalClient) CurrentBearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(ctx, false); err != nil {
		return "", err
	}
	return c.token.Load().Value, nil
}

// BearerExpiry is the expiry of the token currently held. It never blocks and
// is zero before the first login.
func (c *PortalClient) BearerExpiry() time.Time {
	return c.token.Load().Expiry
}

// Invalidate drops the held token when it is still value, so the next
// CurrentBearer logs in again. A token renewed in the meantime is kept.
func (c *PortalClient) Invalidate(value string) {
	cur := c.token.Load()
	if value == "" || cur.Value != value {
		return
	}
	if c.token.CompareAndSwap(cur, &auth.Token{}) {
		c.log.Debug("portal token invalidated")
	}
}

// send runs one request under the session lock with the 401 retry policy.
func (c *PortalClient) send(ctx context.Context, op string, build func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
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

// Close drops idle connections. The session stays usable.
func (c *PortalClient) Close() {
	c.HTTP.GetClient().CloseIdleConnections()
}
